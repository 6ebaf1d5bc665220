// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package cri

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	runtimev1 "k8s.io/cri-api/pkg/apis/runtime/v1"

	"github.com/granulate/gutils/containers"
)

// v1API adapts the CRI v1 runtime service.
type v1API struct {
	rtcl runtimev1.RuntimeServiceClient
}

func newV1API(conn *grpc.ClientConn) *v1API {
	return &v1API{rtcl: runtimev1.NewRuntimeServiceClient(conn)}
}

func (api *v1API) apiVersion() string { return "v1" }

func (api *v1API) version(ctx context.Context) (string, error) {
	version, err := api.rtcl.Version(ctx, &runtimev1.VersionRequest{Version: kubeAPIVersion})
	if err != nil {
		return "", err
	}
	return version.RuntimeName, nil
}

func (api *v1API) listContainers(ctx context.Context) ([]*containerInfo, error) {
	cntrs, err := api.rtcl.ListContainers(ctx, &runtimev1.ListContainersRequest{})
	if err != nil {
		return nil, err
	}
	infos := make([]*containerInfo, 0, len(cntrs.Containers))
	for _, cntr := range cntrs.Containers {
		infos = append(infos, &containerInfo{
			id:           cntr.Id,
			name:         cntr.Metadata.GetName(),
			podSandboxID: cntr.PodSandboxId,
			running:      cntr.State == runtimev1.ContainerState_CONTAINER_RUNNING,
			createdAt:    cntr.CreatedAt,
			labels:       cntr.Labels,
			annotations:  cntr.Annotations,
		})
	}
	return infos, nil
}

func (api *v1API) containerStatus(ctx context.Context, containerID string) (*containerInfo, int, error) {
	status, err := api.rtcl.ContainerStatus(ctx, &runtimev1.ContainerStatusRequest{
		ContainerId: containerID,
		Verbose:     true,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	st := status.Status
	return &containerInfo{
		id:          st.Id,
		name:        st.Metadata.GetName(),
		running:     st.State == runtimev1.ContainerState_CONTAINER_RUNNING,
		createdAt:   st.CreatedAt,
		startedAt:   st.StartedAt,
		labels:      st.Labels,
		annotations: st.Annotations,
	}, pidFromStatusInfo(status.Info), nil
}

func (api *v1API) podSandboxStats(ctx context.Context, podSandboxID string) ([]containers.Network, error) {
	stats, err := api.rtcl.PodSandboxStats(ctx, &runtimev1.PodSandboxStatsRequest{
		PodSandboxId: podSandboxID,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	network := stats.GetStats().GetLinux().GetNetwork()
	if network == nil {
		return nil, nil
	}
	networks := []containers.Network{}
	// the pod's primary interface is reported separately from the rest.
	interfaces := append([]*runtimev1.NetworkInterfaceUsage{network.DefaultInterface}, network.Interfaces...)
	for _, iface := range interfaces {
		if iface == nil {
			continue
		}
		networks = append(networks, containers.Network{
			Name:     iface.Name,
			RxBytes:  iface.GetRxBytes().GetValue(),
			RxErrors: iface.GetRxErrors().GetValue(),
			TxBytes:  iface.GetTxBytes().GetValue(),
			TxErrors: iface.GetTxErrors().GetValue(),
		})
	}
	return networks, nil
}

// pidFromStatusInfo digs the container PID out of the verbose status "info"
// element; it is JSON, inside a string map, inside the response. Runtimes
// aren't required to reveal the PID at all, in which case we return 0.
func pidFromStatusInfo(info map[string]string) int {
	var innerInfo struct {
		PID int `json:"pid"`
	}
	if err := json.Unmarshal([]byte(info["info"]), &innerInfo); err != nil {
		return 0
	}
	return innerInfo.PID
}
