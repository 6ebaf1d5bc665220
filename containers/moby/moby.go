// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package moby

import (
	"context"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"

	"github.com/granulate/gutils/containers"
	"github.com/granulate/gutils/linux"
)

// Runtime is the runtime name reported for Docker-managed containers.
const Runtime = "docker"

// dockerSocket is the daemon's well-known API endpoint.
const dockerSocket = "/var/run/docker.sock"

// MobyAPIClient is the slice of the Docker client this package needs; for
// production Docker's client.Client is a compatible implementation, for unit
// tests a mock will do.
type MobyAPIClient interface {
	client.ContainerAPIClient
	DaemonHost() string
	Close() error
}

// DockerClient is a containers.Client listing and inspecting the containers
// of a Docker daemon.
type DockerClient struct {
	moby MobyAPIClient
}

var _ containers.Client = (*DockerClient)(nil)

// NewDockerClient connects to the Docker daemon through its well-known unix
// socket, resolved against the host root so it also works from inside a
// container. It returns containers.ErrNotAvailable when no daemon answers.
func NewDockerClient(ctx context.Context) (*DockerClient, error) {
	path := linux.ResolveHostRootLink(dockerSocket)
	if !linux.IsSocket(path) {
		return nil, errors.Wrapf(containers.ErrNotAvailable, "no Docker daemon at %q", path)
	}
	moby, err := client.NewClientWithOpts(
		client.WithHost("unix://"+path),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Docker client")
	}
	if _, err := moby.Ping(ctx); err != nil {
		_ = moby.Close()
		return nil, errors.Wrapf(containers.ErrNotAvailable, "Docker daemon not responding: %s", err)
	}
	return &DockerClient{moby: moby}, nil
}

// NewDockerClientFor wraps an already-connected Docker API client; mostly
// useful in unit tests.
func NewDockerClientFor(moby MobyAPIClient) *DockerClient {
	return &DockerClient{moby: moby}
}

// Runtimes returns the single runtime name handled by this client.
func (dc *DockerClient) Runtimes() []string { return []string{Runtime} }

// Close releases the daemon connection.
func (dc *DockerClient) Close() error { return dc.moby.Close() }

// List returns the containers of the Docker daemon; with allInfo each
// container is additionally inspected for its PID, state and times. This is a
// potentially lengthy operation, as we need to inspect each candidate
// individually due to the way the Docker daemon's API is designed.
func (dc *DockerClient) List(ctx context.Context, allInfo bool) ([]*containers.Container, error) {
	cntrs, err := dc.moby.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list Docker containers")
	}
	all := make([]*containers.Container, 0, len(cntrs))
	for _, cntr := range cntrs {
		if !allInfo {
			name := ""
			if len(cntr.Names) > 0 {
				name = trimSlash(cntr.Names[0])
			}
			all = append(all, &containers.Container{
				Runtime: Runtime,
				Name:    name,
				ID:      cntr.ID,
				Labels:  cntr.Labels,
				Running: cntr.State == "running",
			})
			continue
		}
		container, err := dc.Get(ctx, cntr.ID, true)
		if err != nil {
			// silently ignore containers that have gone since the list was
			// prepared, but abort on severe problems.
			if errors.Is(err, containers.ErrContainerNotFound) {
				continue
			}
			return nil, err
		}
		all = append(all, container)
	}
	return all, nil
}

// Get inspects the single container with the specified ID.
func (dc *DockerClient) Get(ctx context.Context, containerID string, allInfo bool) (*containers.Container, error) {
	_ = allInfo // inspect always returns the full details anyway.
	details, err := dc.moby.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, errors.Wrapf(containers.ErrContainerNotFound, "%q", containerID)
		}
		return nil, errors.Wrapf(err, "failed to inspect Docker container %q", containerID)
	}
	container := &containers.Container{
		Runtime: Runtime,
		Name:    trimSlash(details.Name),
		ID:      details.ID,
	}
	if details.Config != nil {
		container.Labels = details.Config.Labels
	}
	if details.State != nil {
		container.Running = details.State.Running
		container.PID = details.State.Pid
		container.TimeInfo = timeInfo(details.Created, details.State.StartedAt)
	}
	return container, nil
}

// timeInfo parses the RFC3339 timestamps of the inspect response; Docker
// reports a zero time for never-started containers.
func timeInfo(created, started string) *containers.TimeInfo {
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil
	}
	info := &containers.TimeInfo{Create: createdAt.UTC()}
	if startedAt, err := time.Parse(time.RFC3339Nano, started); err == nil && !startedAt.IsZero() {
		start := startedAt.UTC()
		info.Start = &start
	}
	return info
}

// trimSlash drops the leading slash the daemon insists on prepending to
// container names.
func trimSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}
