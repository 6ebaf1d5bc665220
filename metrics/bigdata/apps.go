// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package bigdata

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/granulate/gutils/metrics"
	"github.com/granulate/gutils/metrics/yarn"
)

// SparkApp is a running Spark application as seen by the cluster manager.
type SparkApp struct {
	ID          string
	Name        string
	TrackingURL string
}

// RunningApps returns the Spark applications currently running under the
// discovered cluster manager, keyed by application ID.
func (s *Sampler) RunningApps(ctx context.Context) (map[string]SparkApp, error) {
	switch s.mode {
	case ModeYARN:
		return s.yarnApps(ctx)
	case ModeStandalone:
		return s.standaloneApps(ctx)
	case ModeMesos:
		return s.mesosApps(ctx)
	}
	return nil, ErrNoCluster
}

// yarnApps asks the ResourceManager for running Spark applications and then
// traverses each application master to resolve the Spark application IDs
// (which differ from the YARN application IDs).
func (s *Sampler) yarnApps(ctx context.Context) (map[string]SparkApp, error) {
	rm := yarn.NewResourceManagerAPI(s.masterAddress)
	reports, err := rm.Apps(ctx, map[string]string{
		"states":           "RUNNING",
		"applicationTypes": "SPARK",
	})
	if err != nil {
		return nil, err
	}
	apps := map[string]SparkApp{}
	for _, report := range reports {
		id, _ := report["id"].(string)
		name, _ := report["name"].(string)
		trackingURL, _ := report["trackingUrl"].(string)
		if id == "" || name == "" || trackingURL == "" {
			continue
		}
		// The tracking URL proxies the Spark UI of the application master;
		// its applications endpoint reveals the Spark-side application ID.
		base, path, err := metrics.URLPath(metrics.JoinURL(trackingURL, "api/v1/applications"))
		if err != nil {
			continue
		}
		var sparkApps []map[string]any
		if err := metrics.GetJSON(ctx, base, path, nil, &sparkApps); err != nil {
			// the app may have finished since we listed it; skip it.
			continue
		}
		for _, sparkApp := range sparkApps {
			sparkID, _ := sparkApp["id"].(string)
			sparkName, _ := sparkApp["name"].(string)
			if sparkID == "" || sparkName == "" {
				continue
			}
			apps[sparkID] = SparkApp{ID: sparkID, Name: sparkName, TrackingURL: trackingURL}
		}
	}
	return apps, nil
}

// standaloneApps lists the active applications of a Spark standalone master
// and resolves each application's driver UI link from the master's app page.
// The app page only exists as HTML, so we have to scrape the link out of it.
func (s *Sampler) standaloneApps(ctx context.Context) (map[string]SparkApp, error) {
	var state struct {
		ActiveApps []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"activeapps"`
	}
	if err := metrics.GetJSON(ctx, s.masterAddress, "/json", nil, &state); err != nil {
		return nil, err
	}
	apps := map[string]SparkApp{}
	for _, app := range state.ActiveApps {
		if app.ID == "" || app.Name == "" {
			continue
		}
		page, err := metrics.GetHTML(ctx, s.masterAddress, "/app/", map[string]string{"appId": app.ID})
		if err != nil {
			// the app may have finished since we got the list; skip it.
			continue
		}
		appURL := applicationDetailURL(page)
		if appURL == "" {
			continue
		}
		apps[app.ID] = SparkApp{ID: app.ID, Name: app.Name, TrackingURL: appURL}
	}
	return apps, nil
}

// mesosApps lists the frameworks registered with a Mesos master.
func (s *Sampler) mesosApps(ctx context.Context) (map[string]SparkApp, error) {
	var doc struct {
		Frameworks []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			WebuiURL string `json:"webui_url"`
		} `json:"frameworks"`
	}
	if err := metrics.GetJSON(ctx, s.masterAddress, "/frameworks", nil, &doc); err != nil {
		return nil, err
	}
	apps := map[string]SparkApp{}
	for _, framework := range doc.Frameworks {
		if framework.ID == "" || framework.Name == "" || framework.WebuiURL == "" {
			continue
		}
		apps[framework.ID] = SparkApp{ID: framework.ID, Name: framework.Name, TrackingURL: framework.WebuiURL}
	}
	return apps, nil
}

// applicationDetailURL extracts the href of the "Application Detail UI"
// anchor from a standalone master's application page.
func applicationDetailURL(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	var href string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if href != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" &&
			n.FirstChild != nil && strings.TrimSpace(n.FirstChild.Data) == "Application Detail UI" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = attr.Val
					return
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return href
}

// applicationsCollector emits one aliveness sample per running application;
// used for the standalone and Mesos modes where no cluster-wide metrics API
// is available.
type applicationsCollector struct {
	sampler *Sampler
}

func (c *applicationsCollector) Name() string { return "spark-applications" }

func (c *applicationsCollector) Collect(ctx context.Context) ([]metrics.Sample, error) {
	apps, err := c.sampler.RunningApps(ctx)
	if err != nil {
		return nil, err
	}
	samples := []metrics.Sample{}
	for _, app := range apps {
		labels := map[string]string{"app_id": app.ID, "app_name": app.Name}
		for key, value := range c.sampler.labels {
			labels[key] = value
		}
		samples = append(samples, metrics.Sample{
			Labels: labels,
			Name:   "spark_app_running",
			Value:  1,
		})
	}
	samples = append(samples, metrics.Sample{
		Labels: c.sampler.labels,
		Name:   "spark_apps_running_count",
		Value:  float64(len(apps)),
	})
	return samples, nil
}
