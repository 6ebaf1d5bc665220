// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package cri

import (
	"context"

	"google.golang.org/grpc"
	runtimev1alpha2 "k8s.io/cri-api/pkg/apis/runtime/v1alpha2"

	"github.com/granulate/gutils/containers"
)

// v1alpha2API adapts the legacy CRI v1alpha2 runtime service, still spoken by
// older containerd and CRI-O releases.
type v1alpha2API struct {
	rtcl runtimev1alpha2.RuntimeServiceClient
}

func newV1alpha2API(conn *grpc.ClientConn) *v1alpha2API {
	return &v1alpha2API{rtcl: runtimev1alpha2.NewRuntimeServiceClient(conn)}
}

func (api *v1alpha2API) apiVersion() string { return "v1alpha2" }

func (api *v1alpha2API) version(ctx context.Context) (string, error) {
	version, err := api.rtcl.Version(ctx, &runtimev1alpha2.VersionRequest{Version: kubeAPIVersion})
	if err != nil {
		return "", err
	}
	return version.RuntimeName, nil
}

func (api *v1alpha2API) listContainers(ctx context.Context) ([]*containerInfo, error) {
	cntrs, err := api.rtcl.ListContainers(ctx, &runtimev1alpha2.ListContainersRequest{})
	if err != nil {
		return nil, err
	}
	infos := make([]*containerInfo, 0, len(cntrs.Containers))
	for _, cntr := range cntrs.Containers {
		infos = append(infos, &containerInfo{
			id:           cntr.Id,
			name:         cntr.Metadata.GetName(),
			podSandboxID: cntr.PodSandboxId,
			running:      cntr.State == runtimev1alpha2.ContainerState_CONTAINER_RUNNING,
			createdAt:    cntr.CreatedAt,
			labels:       cntr.Labels,
			annotations:  cntr.Annotations,
		})
	}
	return infos, nil
}

func (api *v1alpha2API) containerStatus(ctx context.Context, containerID string) (*containerInfo, int, error) {
	status, err := api.rtcl.ContainerStatus(ctx, &runtimev1alpha2.ContainerStatusRequest{
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
		running:     st.State == runtimev1alpha2.ContainerState_CONTAINER_RUNNING,
		createdAt:   st.CreatedAt,
		startedAt:   st.StartedAt,
		labels:      st.Labels,
		annotations: st.Annotations,
	}, pidFromStatusInfo(status.Info), nil
}

func (api *v1alpha2API) podSandboxStats(ctx context.Context, podSandboxID string) ([]containers.Network, error) {
	stats, err := api.rtcl.PodSandboxStats(ctx, &runtimev1alpha2.PodSandboxStatsRequest{
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
	interfaces := append([]*runtimev1alpha2.NetworkInterfaceUsage{network.DefaultInterface}, network.Interfaces...)
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
