// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package cri

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/granulate/gutils/containers"
	"github.com/granulate/gutils/linux"
)

// The well-known runtime endpoints we probe, in order; CRI lives either with
// containerd or with CRI-O.
var runtimeEndpoints = []string{
	"/run/containerd/containerd.sock",
	"/var/run/crio/crio.sock",
}

// Kubernetes labels and annotations CRI runtimes attach to their (always
// pod-owned) containers; these exist because CRI only ever runs k8s
// containers.
const (
	podNameLabel           = "io.kubernetes.pod.name"
	podNamespaceLabel      = "io.kubernetes.pod.namespace"
	podContainerNameLabel  = "io.kubernetes.container.name"
	podUIDLabel            = "io.kubernetes.pod.uid"
	restartCountAnnotation = "io.kubernetes.container.restartCount"
)

// CriClient is a containers.Client listing and inspecting the containers of
// all CRI runtimes reachable on this host. A host regularly runs one runtime
// only, but nothing stops anyone from running containerd and CRI-O side by
// side, so we keep a client per responsive endpoint.
type CriClient struct {
	clients []*Client
}

var _ containers.Client = (*CriClient)(nil)

// NewCriClient probes the well-known runtime endpoints (resolved against the
// host root, so it works from inside a container) and returns a client
// talking to all responsive ones. It returns containers.ErrNotAvailable when
// no endpoint responds.
func NewCriClient(ctx context.Context, opts ...ClientOpt) (*CriClient, error) {
	if len(opts) == 0 {
		// probing a dead socket must not hang the whole construction.
		opts = []ClientOpt{WithTimeout(5 * time.Second)}
	}
	cc := &CriClient{}
	for _, endpoint := range runtimeEndpoints {
		path := linux.ResolveHostRootLink(endpoint)
		if !linux.IsSocket(path) {
			continue
		}
		client, err := NewClient(ctx, path, opts...)
		if err != nil {
			continue
		}
		cc.clients = append(cc.clients, client)
	}
	if len(cc.clients) == 0 {
		return nil, errors.Wrapf(containers.ErrNotAvailable,
			"CRI is not available at any of %v", runtimeEndpoints)
	}
	return cc, nil
}

// newCriClientFor wraps already-connected clients; used by unit tests to
// avoid the endpoint probing.
func newCriClientFor(clients ...*Client) *CriClient {
	return &CriClient{clients: clients}
}

// Runtimes returns the names of the connected runtimes.
func (cc *CriClient) Runtimes() []string {
	runtimes := make([]string, 0, len(cc.clients))
	for _, client := range cc.clients {
		runtimes = append(runtimes, client.RuntimeName())
	}
	return runtimes
}

// Close closes all runtime connections.
func (cc *CriClient) Close() error {
	var firstErr error
	for _, client := range cc.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// List returns the containers of all connected runtimes. With allInfo each
// container additionally gets the verbose status treatment (PID, times,
// networks) at the cost of extra per-container round trips.
func (cc *CriClient) List(ctx context.Context, allInfo bool) ([]*containers.Container, error) {
	all := []*containers.Container{}
	for _, client := range cc.clients {
		infos, err := client.api.listContainers(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list containers of %q", client.RuntimeName())
		}
		for _, info := range infos {
			if allInfo {
				container, err := cc.inspect(ctx, client, info.id)
				if err != nil {
					return nil, err
				}
				if container == nil {
					continue // gone between list and status.
				}
				all = append(all, container)
				continue
			}
			all = append(all, newContainer(client, info, 0, false))
		}
	}
	return all, nil
}

// Get returns the single container with the specified ID, asking all
// connected runtimes in turn, or containers.ErrContainerNotFound.
func (cc *CriClient) Get(ctx context.Context, containerID string, allInfo bool) (*containers.Container, error) {
	_ = allInfo // the verbose status round trip happens anyway for Get.
	for _, client := range cc.clients {
		container, err := cc.inspect(ctx, client, containerID)
		if err != nil {
			return nil, err
		}
		if container != nil {
			return container, nil
		}
	}
	return nil, errors.Wrapf(containers.ErrContainerNotFound, "%q", containerID)
}

// inspect fetches the verbose status of one container and assembles the full
// model including times and networks; nil when the runtime doesn't know the
// container (anymore).
func (cc *CriClient) inspect(ctx context.Context, client *Client, containerID string) (*containers.Container, error) {
	info, pid, err := client.api.containerStatus(ctx, containerID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get status of container %q", containerID)
	}
	if info == nil {
		return nil, nil
	}
	container := newContainer(client, info, pid, true)
	container.Networks = cc.networks(ctx, client, containerID)
	return container, nil
}

// networks returns the pod network interface counters for the specified
// container. The container status doesn't reveal the pod sandbox, so the
// container-to-sandbox mapping has to come from the container list.
func (cc *CriClient) networks(ctx context.Context, client *Client, containerID string) []containers.Network {
	infos, err := client.api.listContainers(ctx)
	if err != nil {
		return nil
	}
	sandboxID := ""
	for _, info := range infos {
		if info.id == containerID {
			sandboxID = info.podSandboxID
			break
		}
	}
	if sandboxID == "" {
		return nil
	}
	stats, err := client.api.podSandboxStats(ctx, sandboxID)
	if err != nil {
		return nil
	}
	networks := []containers.Network{}
	for _, network := range stats {
		// virtual and host interfaces don't belong to the pod's traffic.
		if !strings.HasPrefix(network.Name, "eth") {
			continue
		}
		networks = append(networks, network)
	}
	return networks
}

// newContainer assembles the runtime-neutral container model from the
// version-neutral CRI info.
func newContainer(client *Client, info *containerInfo, pid int, verbose bool) *containers.Container {
	container := &containers.Container{
		Runtime: client.RuntimeName(),
		Name:    reconstructName(info),
		ID:      info.id,
		Labels:  info.labels,
		Running: info.running,
		PID:     pid,
	}
	if verbose {
		timeInfo := &containers.TimeInfo{
			Create: time.Unix(0, info.createdAt).UTC(),
		}
		// from the ContainerStatus message docs, 0 == not started.
		if info.startedAt != 0 {
			start := time.Unix(0, info.startedAt).UTC()
			timeInfo.Start = &start
		}
		container.TimeInfo = timeInfo
	}
	return container
}

// reconstructName rebuilds the name dockershim would have given this
// container, for compatibility with the Docker client flavor. See
// makeContainerName in kubernetes/pkg/kubelet/dockershim/naming.go. The
// labels are guaranteed to be there because CRI lists only k8s containers.
func reconstructName(info *containerInfo) string {
	return strings.Join([]string{
		"k8s",
		info.labels[podContainerNameLabel],
		info.labels[podNameLabel],
		info.labels[podNamespaceLabel],
		info.labels[podUIDLabel],
		info.annotations[restartCountAnnotation],
	}, "_")
}
