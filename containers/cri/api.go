// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package cri

import (
	"context"

	"github.com/granulate/gutils/containers"
)

// kubeAPIVersion is the (minimum) CRI API version we announce in Version
// requests; CRI runtimes don't actually gate on it.
const kubeAPIVersion = "0.1.0"

// containerInfo is the version-neutral subset of the CRI container and
// container-status messages our model is built from; it lets the rest of the
// package stay oblivious of whether a runtime speaks v1 or v1alpha2.
type containerInfo struct {
	id           string
	name         string
	podSandboxID string
	running      bool
	createdAt    int64 // nanoseconds since epoch.
	startedAt    int64 // nanoseconds since epoch, 0 == not started.
	labels       map[string]string
	annotations  map[string]string
}

// runtimeAPI adapts one concrete CRI API version onto the neutral shapes
// above. listContainers returns the (cheap) list view without PID and times;
// containerStatus returns the verbose view including the PID dug out of the
// status info, or nil when the runtime doesn't know the container.
type runtimeAPI interface {
	apiVersion() string
	version(ctx context.Context) (runtimeName string, err error)
	listContainers(ctx context.Context) ([]*containerInfo, error)
	containerStatus(ctx context.Context, containerID string) (info *containerInfo, pid int, err error)
	podSandboxStats(ctx context.Context, podSandboxID string) ([]containers.Network, error)
}
