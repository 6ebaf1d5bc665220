// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

// Package yarn wraps the Hadoop YARN ResourceManager web services API and
// provides a metrics Collector on top of it.
package yarn
