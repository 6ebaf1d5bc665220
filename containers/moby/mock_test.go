// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package moby

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// mockedContainer is the bare minimum of container knowledge the mock daemon
// needs for our unit tests.
type mockedContainer struct {
	ID      string
	Name    string
	Running bool
	PID     int
	Labels  map[string]string
	Created time.Time
	Started time.Time
}

// mockMoby mocks just the two Docker API client calls DockerClient relies on;
// the embedded interface covers the rest at compile time and will panic when
// accidentally hit.
type mockMoby struct {
	client.ContainerAPIClient
	containers []mockedContainer
	// IDs that show up in listings, yet have vanished by inspection time.
	vanished map[string]bool
}

var _ MobyAPIClient = (*mockMoby)(nil)

func (mm *mockMoby) DaemonHost() string { return "unix:///var/run/docker.sock" }

func (mm *mockMoby) Close() error { return nil }

func (mm *mockMoby) ContainerList(_ context.Context, _ types.ContainerListOptions) ([]types.Container, error) {
	cntrs := make([]types.Container, 0, len(mm.containers))
	for _, cntr := range mm.containers {
		state := "exited"
		if cntr.Running {
			state = "running"
		}
		cntrs = append(cntrs, types.Container{
			ID:     cntr.ID,
			Names:  []string{"/" + cntr.Name},
			Labels: cntr.Labels,
			State:  state,
		})
	}
	return cntrs, nil
}

func (mm *mockMoby) ContainerInspect(_ context.Context, nameorid string) (types.ContainerJSON, error) {
	for _, cntr := range mm.containers {
		if cntr.ID != nameorid && cntr.Name != nameorid {
			continue
		}
		if mm.vanished[cntr.ID] {
			break
		}
		return types.ContainerJSON{
			ContainerJSONBase: &types.ContainerJSONBase{
				ID:      cntr.ID,
				Name:    "/" + cntr.Name,
				Created: cntr.Created.Format(time.RFC3339Nano),
				State: &types.ContainerState{
					Running:   cntr.Running,
					Pid:       cntr.PID,
					StartedAt: cntr.Started.Format(time.RFC3339Nano),
				},
			},
			Config: &container.Config{
				Labels: cntr.Labels,
			},
		}, nil
	}
	return types.ContainerJSON{}, errdefs.NotFound(fmt.Errorf("no such container %q", nameorid))
}
