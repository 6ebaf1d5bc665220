// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

/*
Package moby provides a containers.Client talking to a Docker daemon.

Compared to the CRI world, Docker already hands out most container details in
a single inspection, so the only price of a fully detailed listing is one
inspect round trip per container. Containers that terminate and get removed
between listing and inspection are silently skipped, as this is business as
usual on a moderately busy daemon.
*/
package moby
