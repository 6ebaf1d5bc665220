// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

/*
Package configfeeder submits the Big Data configurations of cluster nodes to
the config feeder service.

A Client collects the node's configurations (currently the effective YARN
configuration), registers the cluster and node with the service on first
contact, and pushes the configurations whenever their digest changed since
the previous push. Registration tolerates already-known clusters and nodes,
so many nodes of the same cluster can feed concurrently.
*/
package configfeeder
