// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package yarn

import (
	"context"

	"github.com/granulate/gutils/metrics"
)

// clusterMetrics maps the fields of the RM's clusterMetrics document onto the
// metric names we submit.
var clusterMetrics = map[string]string{
	"appsSubmitted":         "yarn_apps_submitted",
	"appsCompleted":         "yarn_apps_completed",
	"appsPending":           "yarn_apps_pending",
	"appsRunning":           "yarn_apps_running",
	"appsFailed":            "yarn_apps_failed",
	"appsKilled":            "yarn_apps_killed",
	"totalMB":               "yarn_total_mb",
	"availableMB":           "yarn_available_mb",
	"allocatedMB":           "yarn_allocated_mb",
	"reservedMB":            "yarn_reserved_mb",
	"totalVirtualCores":     "yarn_total_virtual_cores",
	"availableVirtualCores": "yarn_available_virtual_cores",
	"allocatedVirtualCores": "yarn_allocated_virtual_cores",
	"containersAllocated":   "yarn_containers_allocated",
	"containersPending":     "yarn_containers_pending",
	"containersReserved":    "yarn_containers_reserved",
	"totalNodes":            "yarn_total_nodes",
	"activeNodes":           "yarn_active_nodes",
	"lostNodes":             "yarn_lost_nodes",
	"unhealthyNodes":        "yarn_unhealthy_nodes",
	"decommissionedNodes":   "yarn_decommissioned_nodes",
	"rebootedNodes":         "yarn_rebooted_nodes",
}

// nodeMetrics maps the per-node report fields onto metric names.
var nodeMetrics = map[string]string{
	"numContainers":         "yarn_node_containers",
	"usedMemoryMB":          "yarn_node_used_memory_mb",
	"availMemoryMB":         "yarn_node_avail_memory_mb",
	"usedVirtualCores":      "yarn_node_used_virtual_cores",
	"availableVirtualCores": "yarn_node_available_virtual_cores",
}

// Collector collects cluster-wide and per-node metrics from a YARN
// ResourceManager.
type Collector struct {
	rm     *ResourceManagerAPI
	labels map[string]string
}

// NewCollector returns a Collector for the ResourceManager at the specified
// base address; the labels are attached to every collected sample.
func NewCollector(address string, labels map[string]string) *Collector {
	return &Collector{rm: NewResourceManagerAPI(address), labels: labels}
}

// Name returns this collector's identifier.
func (c *Collector) Name() string { return "yarn" }

// Collect fetches the RM's cluster metrics plus the per-node reports and maps
// them onto samples.
func (c *Collector) Collect(ctx context.Context) ([]metrics.Sample, error) {
	cluster, err := c.rm.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	samples := metrics.SamplesFromJSON(c.labels, cluster, clusterMetrics)

	nodes, err := c.rm.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		hostname, _ := node["nodeHostName"].(string)
		labels := map[string]string{"node_hostname": hostname}
		for key, value := range c.labels {
			labels[key] = value
		}
		samples = append(samples, metrics.SamplesFromJSON(labels, node, nodeMetrics)...)
	}
	return samples, nil
}
