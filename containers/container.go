// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Container is a deliberately limited view on containers, dealing with only
// those few bits of data we're interested in for host introspection: who runs
// what, under which identity, and with which initial process.
//
// PID is the PID of the container's initial process as seen from the host PID
// namespace, or 0 when the runtime didn't reveal it (the CRI API makes no
// promises here and some runtimes simply don't tell).
type Container struct {
	Runtime  string            // name of the runtime that owns this container.
	Name     string            // user-friendly (reconstructed) name of this container.
	ID       string            // unique identifier of this container.
	Labels   map[string]string // labels assigned to this container.
	Running  bool              // true while the container has a running process.
	PID      int               // PID of the container's initial process, or 0.
	TimeInfo *TimeInfo         // creation/start times, when known.
	Networks []Network         // pod network interfaces, when known.
}

// TimeInfo gathers a container's creation and start times. Start is nil for
// containers that were created but never started.
type TimeInfo struct {
	Create time.Time  // container creation time.
	Start  *time.Time // container start time, or nil if not started.
}

// Network holds the byte and error counters of a single (pod) network
// interface.
type Network struct {
	Name     string
	RxBytes  uint64
	RxErrors uint64
	TxBytes  uint64
	TxErrors uint64
}

// String renders a textual representation of the information kept about a
// specific container, such as its name, ID, and PID.
func (c Container) String() string {
	return fmt.Sprintf("%s container '%s'/%s with PID %d", c.Runtime, c.Name, c.ID, c.PID)
}

// Client provides a runtime-agnostic view on the containers alive on this
// host. Implementations exist for CRI-speaking runtimes (containerd, CRI-O)
// as well as for plain Docker daemons.
type Client interface {
	// List returns all containers known to the runtime(s); with allInfo the
	// containers additionally carry PID, time and network information, at the
	// cost of extra per-container runtime round trips.
	List(ctx context.Context, allInfo bool) ([]*Container, error)
	// Get returns the single container with the specified ID, or
	// ErrContainerNotFound.
	Get(ctx context.Context, containerID string, allInfo bool) (*Container, error)
	// Runtimes returns the names of the connected container runtime(s).
	Runtimes() []string
	// Close releases any runtime connections held by this client.
	Close() error
}

// ErrContainerNotFound is returned when asking for a container the runtime(s)
// don't know about.
var ErrContainerNotFound = errors.New("container not found")

// ErrNotAvailable is returned when no supported container runtime could be
// reached on this host.
var ErrNotAvailable = errors.New("container runtime not available")
