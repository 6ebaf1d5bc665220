// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package moby

import (
	"context"
	"os"
	"time"

	"github.com/ory/dockertest/v3"

	"github.com/granulate/gutils/containers"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("Docker containers", func() {

	var mm *mockMoby
	var dc *DockerClient

	BeforeEach(func() {
		created := time.Date(2023, 4, 5, 6, 7, 8, 900000000, time.UTC)
		mm = &mockMoby{
			containers: []mockedContainer{
				{
					ID:      "f00dc0de",
					Name:    "furious_furuncle",
					Running: true,
					PID:     12345,
					Labels:  map[string]string{"com.example/fool": "barz"},
					Created: created,
					Started: created.Add(2 * time.Second),
				},
				{
					ID:      "dedbeef",
					Name:    "morose_moriarty",
					Running: false,
					Labels:  map[string]string{},
					Created: created,
				},
			},
			vanished: map[string]bool{},
		}
		dc = NewDockerClientFor(mm)
		DeferCleanup(func() { Expect(dc.Close()).To(Succeed()) })
	})

	It("reports its runtime", func() {
		Expect(dc.Runtimes()).To(ConsistOf(Runtime))
	})

	It("lists containers cheaply without inspecting them", func(ctx context.Context) {
		cntrs := Successful(dc.List(ctx, false))
		Expect(cntrs).To(HaveLen(2))
		Expect(cntrs).To(ContainElement(And(
			HaveField("Name", "furious_furuncle"),
			HaveField("Running", true),
			HaveField("PID", 0),
			HaveField("TimeInfo", BeNil()),
			HaveField("Labels", HaveKeyWithValue("com.example/fool", "barz")),
		)))
		Expect(cntrs).To(ContainElement(And(
			HaveField("Name", "morose_moriarty"),
			HaveField("Running", false),
		)))
	})

	It("lists containers with full details", func(ctx context.Context) {
		cntrs := Successful(dc.List(ctx, true))
		Expect(cntrs).To(ContainElement(And(
			HaveField("ID", "f00dc0de"),
			HaveField("PID", 12345),
			HaveField("TimeInfo.Create", time.Date(2023, 4, 5, 6, 7, 8, 900000000, time.UTC)),
			HaveField("TimeInfo.Start", HaveValue(
				Equal(time.Date(2023, 4, 5, 6, 7, 10, 900000000, time.UTC)))),
		)))
	})

	It("silently skips containers gone midway through listing", func(ctx context.Context) {
		mm.vanished["dedbeef"] = true
		cntrs := Successful(dc.List(ctx, true))
		Expect(cntrs).To(HaveLen(1))
		Expect(cntrs[0].ID).To(Equal("f00dc0de"))
	})

	It("inspects a single container", func(ctx context.Context) {
		cntr := Successful(dc.Get(ctx, "dedbeef", true))
		Expect(cntr.Name).To(Equal("morose_moriarty"))
		Expect(cntr.Running).To(BeFalse())
		Expect(cntr.TimeInfo).NotTo(BeNil())
		Expect(cntr.TimeInfo.Start).To(BeNil())
	})

	It("returns the canonical error for unknown containers", func(ctx context.Context) {
		Expect(dc.Get(ctx, "up_the_chimney", true)).
			Error().To(MatchError(containers.ErrContainerNotFound))
	})

	When("a real Docker daemon is around", func() {

		BeforeEach(func() {
			if os.Getuid() != 0 {
				Skip("needs root")
			}
		})

		It("discovers a live container", func(ctx context.Context) {
			pool := Successful(dockertest.NewPool("unix:///var/run/docker.sock"))
			sleepy := Successful(pool.RunWithOptions(&dockertest.RunOptions{
				Repository: "busybox",
				Tag:        "latest",
				Cmd:        []string{"/bin/sleep", "60s"},
			}))
			DeferCleanup(func() { Expect(pool.Purge(sleepy)).To(Succeed()) })

			dc := Successful(NewDockerClient(ctx))
			defer dc.Close()
			cntr := Successful(dc.Get(ctx, sleepy.Container.ID, true))
			Expect(cntr.Runtime).To(Equal(Runtime))
			Expect(cntr.Running).To(BeTrue())
			Expect(cntr.PID).NotTo(BeZero())
			Expect(cntr.TimeInfo).NotTo(BeNil())
		})

	})

})
