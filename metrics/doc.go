// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

// Package metrics defines the sample and snapshot model shared by all metric
// collectors, together with the small set of REST helpers the collectors use
// to talk to cluster-manager web APIs.
package metrics
