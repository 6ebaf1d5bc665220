// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package bigdata

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procRoot is the procfs mount to scan; a variable so the unit tests can
// point it at a faked tree.
var procRoot = "/proc"

// process is a minimal view on a /proc/<pid> entry, just enough to identify
// cluster-manager master processes and to peek at their configuration.
type process struct {
	pid int
}

func (p process) dir() string { return filepath.Join(procRoot, strconv.Itoa(p.pid)) }

// cmdline returns the process' command line arguments.
func (p process) cmdline() []string {
	raw, err := os.ReadFile(filepath.Join(p.dir(), "cmdline"))
	if err != nil || len(raw) == 0 {
		return nil
	}
	return strings.Split(strings.TrimRight(string(raw), "\x00"), "\x00")
}

// environ returns the process' environment as a map.
func (p process) environ() map[string]string {
	raw, err := os.ReadFile(filepath.Join(p.dir(), "environ"))
	if err != nil {
		return nil
	}
	env := map[string]string{}
	for _, kv := range strings.Split(string(raw), "\x00") {
		if key, value, found := strings.Cut(kv, "="); found {
			env[key] = value
		}
	}
	return env
}

// exe returns the path of the process' executable, or "" when unreadable.
func (p process) exe() string {
	target, err := os.Readlink(filepath.Join(p.dir(), "exe"))
	if err != nil {
		return ""
	}
	return target
}

// rootedPath rebases an absolute path into the process' own filesystem root,
// so configuration files of containerized masters resolve correctly.
func (p process) rootedPath(path string) string {
	return filepath.Join(p.dir(), "root", path)
}

// processes returns all processes currently listed in procfs.
func processes() []process {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil
	}
	procs := make([]process, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		procs = append(procs, process{pid: pid})
	}
	return procs
}

// findProcess returns the first process satisfying the filter, or ok=false.
func findProcess(filter func(process) bool) (process, bool) {
	for _, proc := range processes() {
		if filter(proc) {
			return proc, true
		}
	}
	return process{}, false
}
