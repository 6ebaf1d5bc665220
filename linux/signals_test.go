// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package linux

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("kernel signal reports", func() {

	It("parses an x86 segfault line with a timestamp", func() {
		entry, ok := ParseSignalEntry(
			"[613450.123456] a[613450]: segfault at 0 ip 000056087e9aa136 sp 00007fffab66a9f0 error 6 in a[56087e9aa000+1000]")
		Expect(ok).To(BeTrue())
		Expect(entry.HasTimestamp).To(BeTrue())
		Expect(entry.Timestamp).To(BeNumerically("~", 613450.123456, 1e-6))
		Expect(entry.PID).To(Equal(613450))
		Expect(entry.Comm).To(Equal("a"))
		Expect(entry.Desc).To(Equal("segfault at 0"))
		Expect(entry.ErrorCode).To(Equal("6"))
		Expect(entry.VMAInfo).To(Equal("a[56087e9aa000+1000]"))
	})

	It("parses an x86 traps line without a timestamp", func() {
		entry, ok := ParseSignalEntry(
			"traps: crashy[4242] general protection fault ip:55f1a2b3c4d5 sp:7ffd12345678 error:0 in crashy[55f1a2b30000+5000]")
		Expect(ok).To(BeTrue())
		Expect(entry.HasTimestamp).To(BeFalse())
		Expect(entry.PID).To(Equal(4242))
		Expect(entry.Comm).To(Equal("crashy"))
		Expect(entry.Desc).To(Equal("general protection fault"))
		Expect(entry.ErrorCode).To(Equal("0"))
	})

	It("parses an Aarch64 unhandled exception line", func() {
		entry, ok := ParseSignalEntry(
			"a[160760]: unhandled exception: DABT (lower EL), ESR 0x92000044, level 0 translation fault in a[aaaab0b60000+1000]")
		Expect(ok).To(BeTrue())
		Expect(entry.PID).To(Equal(160760))
		Expect(entry.Comm).To(Equal("a"))
		Expect(entry.Desc).To(Equal("DABT (lower EL), ESR 0x92000044, level 0 translation fault"))
		Expect(entry.ErrorCode).To(BeEmpty())
		Expect(entry.VMAInfo).To(Equal("a[aaaab0b60000+1000]"))
	})

	It("rejects unrelated dmesg lines", func() {
		_, ok := ParseSignalEntry("usb 1-1: new high-speed USB device number 2 using xhci_hcd")
		Expect(ok).To(BeFalse())
	})

})
