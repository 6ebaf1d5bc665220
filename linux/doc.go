// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

// Package linux gathers small Linux host-level helpers: scraping kernel
// fatal-signal reports from dmesg lines and resolving paths against the
// host's root filesystem when running containerized.
package linux
