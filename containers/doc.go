// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

/*
Package containers defines a minimal, runtime-agnostic container model and the
Client interface for listing and inspecting the containers alive on a host.

The subpackages provide the concrete runtime bindings: containers/cri talks
the Kubernetes Container Runtime Interface (containerd, CRI-O), while
containers/moby talks to plain Docker daemons. Both return the same Container
information, so consumers don't need to care about the specific runtime
zoo installed on a particular host.
*/
package containers
