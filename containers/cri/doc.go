// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

/*
Package cri implements the containers.Client interface on top of the
Kubernetes Container Runtime Interface, as provided by containerd and CRI-O.

The client probes the well-known runtime endpoints on the host and speaks CRI
v1 where available, transparently falling back to the legacy v1alpha2 API of
older runtimes. Both API versions are served by the same pinned k8s.io/cri-api
generation (see cmd/gencri for regenerating standalone bindings).

The CRI API has been designed solely from the kubelet's perspective, which
makes it mildly painful for everyone else: the container list carries neither
PIDs nor pod details, the verbose container status hides the PID inside a
JSON string inside a string map, and network counters only exist per pod
sandbox, with the container-to-sandbox mapping again only available from the
container list. The round trips in this package are the minimum the API
forces on us.
*/
package cri
