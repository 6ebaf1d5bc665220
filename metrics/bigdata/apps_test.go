// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package bigdata

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

const masterAppPage = `<html><body>
<ul>
  <li><strong>Executors:</strong> 2</li>
  <li><a href="http://driver:4040">Application Detail UI</a></li>
</ul>
</body></html>`

var _ = Describe("running application discovery", func() {

	It("extracts the driver link from a standalone master app page", func() {
		Expect(applicationDetailURL(masterAppPage)).To(Equal("http://driver:4040"))
		Expect(applicationDetailURL("<html><body>nothing here</body></html>")).To(BeEmpty())
	})

	It("discovers standalone applications via master JSON plus HTML scraping", func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"activeapps":[{"id":"app-2024-0001","name":"etl"}]}`))
		})
		mux.HandleFunc("/app/", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Query().Get("appId")).To(Equal("app-2024-0001"))
			_, _ = w.Write([]byte(masterAppPage))
		})
		srv := httptest.NewServer(mux)
		DeferCleanup(srv.Close)

		sampler := &Sampler{masterAddress: srv.URL, mode: ModeStandalone}
		apps := Successful(sampler.RunningApps(context.Background()))
		Expect(apps).To(HaveKey("app-2024-0001"))
		Expect(apps["app-2024-0001"].TrackingURL).To(Equal("http://driver:4040"))
	})

	It("discovers YARN applications and resolves their Spark IDs", func() {
		amMux := http.NewServeMux()
		amMux.HandleFunc("/api/v1/applications", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"id":"spark-0001","name":"wordcount"}]`))
		})
		am := httptest.NewServer(amMux)
		DeferCleanup(am.Close)

		rmMux := http.NewServeMux()
		rmMux.HandleFunc("/ws/v1/cluster/apps", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Query().Get("states")).To(Equal("RUNNING"))
			Expect(r.URL.Query().Get("applicationTypes")).To(Equal("SPARK"))
			_, _ = w.Write([]byte(`{"apps":{"app":[
				{"id":"application_1","name":"wordcount","trackingUrl":"` + am.URL + `"}]}}`))
		})
		rm := httptest.NewServer(rmMux)
		DeferCleanup(rm.Close)

		sampler := &Sampler{masterAddress: rm.URL, mode: ModeYARN}
		apps := Successful(sampler.RunningApps(context.Background()))
		Expect(apps).To(HaveKey("spark-0001"))
		Expect(apps["spark-0001"].Name).To(Equal("wordcount"))
	})

	It("discovers Mesos frameworks", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/frameworks"))
			_, _ = w.Write([]byte(`{"frameworks":[
				{"id":"fw-1","name":"spark-shell","webui_url":"http://driver:4040"}]}`))
		}))
		DeferCleanup(srv.Close)

		sampler := &Sampler{masterAddress: srv.URL, mode: ModeMesos}
		apps := Successful(sampler.RunningApps(context.Background()))
		Expect(apps).To(HaveKeyWithValue("fw-1", SparkApp{
			ID: "fw-1", Name: "spark-shell", TrackingURL: "http://driver:4040",
		}))
	})

	It("snapshots per-application aliveness samples in standalone mode", func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"activeapps":[{"id":"app-1","name":"etl"}]}`))
		})
		mux.HandleFunc("/app/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(masterAppPage))
		})
		srv := httptest.NewServer(mux)
		DeferCleanup(srv.Close)

		sampler := NewSampler(WithLabels(map[string]string{"spark_service": "svc"}))
		sampler.masterAddress = srv.URL
		sampler.mode = ModeStandalone
		Expect(Successful(sampler.Discover(context.Background()))).To(BeTrue())

		snapshot := Successful(sampler.Snapshot(context.Background()))
		Expect(snapshot).NotTo(BeNil())
		Expect(snapshot.Timestamp).NotTo(BeZero())
		names := make([]string, 0, len(snapshot.Samples))
		for _, sample := range snapshot.Samples {
			names = append(names, sample.Name)
		}
		Expect(names).To(ConsistOf("spark_app_running", "spark_apps_running_count"))
	})

})
