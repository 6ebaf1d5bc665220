// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// fakeSparkUI serves the two Spark UI resources job name discovery touches;
// the apps handler can be swapped per spec.
type fakeSparkUI struct {
	server      *httptest.Server
	apps        atomic.Value // func(w http.ResponseWriter)
	environment string
}

func newFakeSparkUI(environment string) *fakeSparkUI {
	ui := &fakeSparkUI{environment: environment}
	ui.apps.Store(func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`[{"id": "app-20230405060708-0001"}]`))
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/applications", func(w http.ResponseWriter, _ *http.Request) {
		ui.apps.Load().(func(http.ResponseWriter))(w)
	})
	mux.HandleFunc("/api/v1/applications/app-20230405060708-0001/environment",
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(ui.environment))
		})
	ui.server = httptest.NewServer(mux)
	DeferCleanup(ui.server.Close)
	return ui
}

// client returns a DatabricksClient wired to this fake UI through a metrics
// properties file naming the UI's host.
func (ui *fakeSparkUI) client() *DatabricksClient {
	parsed := Successful(url.Parse(ui.server.URL))
	properties := filepath.Join(GinkgoT().TempDir(), "metrics.properties")
	Expect(os.WriteFile(properties, []byte(
		"# Autogenerated by Databricks\n"+
			"*.sink.ganglia.host="+parsed.Hostname()+"\n"+
			"*.sink.ganglia.port=8649\n"), 0o644)).To(Succeed())
	return NewDatabricksClient(
		WithPropertiesPath(properties),
		WithWebUIPort(Successful(strconv.Atoi(parsed.Port()))))
}

const allTagsEnvironment = `{"sparkProperties": [
	["spark.app.name", "Databricks Shell"],
	["spark.databricks.clusterUsageTags.clusterAllTags",
	 "[{\"key\": \"RunName\", \"value\": \"Nightly ETL\"}, {\"key\": \"Vendor\", \"value\": \"Databricks\"}]"]
]}`

const redactedEnvironment = `{"sparkProperties": [
	["spark.databricks.clusterUsageTags.clusterAllTags", "[redacted]"],
	["spark.databricks.clusterUsageTags.clusterName", "My run-42-Cluster"]
]}`

var _ = Describe("Databricks job name discovery", func() {

	It("derives the job name from the RunName cluster tag", func(ctx context.Context) {
		ui := newFakeSparkUI(allTagsEnvironment)
		Expect(ui.client().JobName(ctx)).To(Equal("job-nightly-etl"))
	})

	It("falls back to the cluster name with the run ID stripped", func(ctx context.Context) {
		ui := newFakeSparkUI(redactedEnvironment)
		Expect(ui.client().JobName(ctx)).To(Equal("my-cluster"))
	})

	It("waits for the first application to appear", func(ctx context.Context) {
		ui := newFakeSparkUI(allTagsEnvironment)
		var calls atomic.Int32
		ui.apps.Store(func(w http.ResponseWriter) {
			if calls.Add(1) < 3 {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"id": "app-20230405060708-0001"}]`))
		})
		Expect(ui.client().JobName(ctx)).To(Equal("job-nightly-etl"))
		Expect(calls.Load()).To(BeNumerically(">=", 3))
	}, SpecTimeout(30*time.Second))

	It("tolerates the Spark startup banner", func(ctx context.Context) {
		ui := newFakeSparkUI(allTagsEnvironment)
		var calls atomic.Int32
		ui.apps.Store(func(w http.ResponseWriter) {
			if calls.Add(1) == 1 {
				_, _ = w.Write([]byte("Spark is starting up. Please wait a while until it's ready"))
				return
			}
			_, _ = w.Write([]byte(`[{"id": "app-20230405060708-0001"}]`))
		})
		Expect(ui.client().JobName(ctx)).To(Equal("job-nightly-etl"))
	}, SpecTimeout(30*time.Second))

	It("gives up when the properties never get deployed", func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		dc := NewDatabricksClient(
			WithPropertiesPath(filepath.Join(GinkgoT().TempDir(), "nope.properties")))
		Expect(dc.JobName(ctx)).Error().To(HaveOccurred())
	}, SpecTimeout(30*time.Second))

	It("fails hard on an unusable environment", func(ctx context.Context) {
		ui := newFakeSparkUI(`{"sparkProperties": [["spark.app.name", "shell"]]}`)
		Expect(ui.client().JobName(ctx)).Error().To(MatchError(ErrJobNameDiscovery))
	})

	It("reports no name for interactive clusters without one", func(ctx context.Context) {
		ui := newFakeSparkUI(`{"sparkProperties": [
			["spark.databricks.clusterUsageTags.clusterAllTags",
			 "[{\"key\": \"Vendor\", \"value\": \"Databricks\"}]"]
		]}`)
		Expect(ui.client().JobName(ctx)).To(Equal(""))
	})

})
