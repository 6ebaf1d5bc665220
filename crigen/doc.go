// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

/*
Package crigen regenerates standalone protobuf/gRPC bindings for the CRI
runtime API versions v1 and v1alpha2, together with their shared gogoproto
dependency schema.

Schema sources are fetched pinned to explicit upstream refs, so a later rerun
reproduces byte-identical inputs; output identity additionally depends on the
protoc and gogofast versions installed in the surrounding environment. Import
statements are rewritten by literal substring substitution both in the fetched
schemas and in the generated code, relocating everything under the target
module namespace.

The pipeline is single-threaded and fail-fast: the first broken step aborts
the run with the underlying diagnostic and without cleanup, so a failed run
can leave a half populated output tree behind.
*/
package crigen
