// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package linux

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// hostRoot is where the host's root filesystem shows up; going through the
// init process keeps things working when we ourselves run inside a container
// with the host PID namespace mounted in.
var hostRoot = "/proc/1/root"

// ResolveHostRootLink rebases the specified absolute host path onto the
// host's root filesystem as seen through the init process, resolving a
// symbolic link at the final path element against that same root. Runtime
// API sockets are regularly such links (for instance, Docker's containerd
// socket), and resolving them against our own root would escape the host
// view.
func ResolveHostRootLink(path string) string {
	rebased := filepath.Join(hostRoot, path)
	target, err := os.Readlink(rebased)
	if err != nil {
		return rebased
	}
	if filepath.IsAbs(target) {
		return filepath.Join(hostRoot, target)
	}
	return filepath.Join(filepath.Dir(rebased), target)
}

// IsSocket reports whether the specified path exists and is a unix domain
// socket.
func IsSocket(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFSOCK
}
