// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package linux

import (
	"regexp"
	"strconv"
)

// see show_signal() for x86, e.g: "a[613450]: segfault at 0 ip 000056087e9aa136
// sp 00007fffab66a9f0 error 6 in a[56087e9aa000+1000]"
var showSignalX86 = regexp.MustCompile(
	`(?:<\d>)?(?:\[(?P<timestamp>\d+\.\d+)\] )?(?:traps: )?(?P<comm>.{0,15})\[(?P<pid>\d+)\]:? (?P<desc>.*) ip(?::| )(?P<ip>[0-9a-f]+) sp(?::| )(?P<sp>[0-9a-f]+) error(?::| )(?P<error>[0-9a-f]+)(?: in (?P<vma_info>.+\[[0-9a-f]+\+[0-9a-f]+\]))?`)

// and arm64_show_signal() for Aarch64, e.g: "a[160760]: unhandled exception:
// DABT (lower EL), ESR 0x92000044, level 0 translation fault in
// a[aaaab0b60000+1000]"
var showSignalAarch64 = regexp.MustCompile(
	`(?:<\d>)?(?:\[(?P<timestamp>\d+\.\d+)\] )?(?P<comm>.{0,15})\[(?P<pid>\d+)\]: unhandled exception: (?:(?P<desc>.*) )?in (?P<vma_info>.+\[[0-9a-f]+\+[0-9a-f]+\])`)

// SignalEntry is a single fatal-signal report scraped from a kernel log line,
// as printed by the kernel's show_signal() (x86) or arm64_show_signal()
// (Aarch64) helpers when a process gets a segfault, trap, et cetera.
type SignalEntry struct {
	Timestamp    float64 // kernel timestamp in seconds, or 0 when the line carried none.
	PID          int
	Comm         string // task command name, truncated by the kernel to 15 chars.
	Desc         string // human-readable fault description.
	ErrorCode    string // x86 page-fault error code (hex), empty on Aarch64.
	VMAInfo      string // "comm[start+size]" of the faulting mapping, when printed.
	HasTimestamp bool
}

// ParseSignalEntry scrapes a single dmesg line for a fatal-signal report and
// returns the parsed entry, or ok=false when the line is not such a report.
func ParseSignalEntry(dmesgLine string) (entry SignalEntry, ok bool) {
	re := showSignalX86
	m := re.FindStringSubmatch(dmesgLine)
	if m == nil {
		re = showSignalAarch64
		m = re.FindStringSubmatch(dmesgLine)
	}
	if m == nil {
		return SignalEntry{}, false
	}
	group := func(name string) string {
		idx := re.SubexpIndex(name)
		if idx < 0 || idx >= len(m) {
			return ""
		}
		return m[idx]
	}
	if ts := group("timestamp"); ts != "" {
		entry.Timestamp, _ = strconv.ParseFloat(ts, 64)
		entry.HasTimestamp = true
	}
	entry.PID, _ = strconv.Atoi(group("pid"))
	entry.Comm = group("comm")
	entry.Desc = group("desc")
	entry.ErrorCode = group("error")
	entry.VMAInfo = group("vma_info")
	return entry, true
}
