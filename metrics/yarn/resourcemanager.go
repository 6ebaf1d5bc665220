// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package yarn

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/granulate/gutils/metrics"
)

// ResourceManagerClassName is the JVM entry class of the YARN
// ResourceManager; its presence in a process command line marks a YARN
// master node.
const ResourceManagerClassName = "org.apache.hadoop.yarn.server.resourcemanager.ResourceManager"

var semVerRegexp = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// ErrInvalidVersion is returned when the ResourceManager reports a version
// string no semantic version can be extracted from.
var ErrInvalidVersion = errors.New("invalid ResourceManager version")

// ResourceManagerAPI wraps the YARN ResourceManager web services API
// (ws/v1/cluster/...) plus the JMX servlet.
type ResourceManagerAPI struct {
	address string // base URL, scheme and host:port.

	mu      sync.Mutex
	version string // cached cluster version, lazily fetched.
}

// NewResourceManagerAPI returns a ResourceManagerAPI talking to the RM
// at the specified base address ("http://host:8088").
func NewResourceManagerAPI(address string) *ResourceManagerAPI {
	return &ResourceManagerAPI{address: strings.TrimRight(address, "/")}
}

// Address returns the ResourceManager base address.
func (rm *ResourceManagerAPI) Address() string { return rm.address }

// Apps returns the cluster's application reports, optionally narrowed down by
// query parameters such as "states" and "applicationTypes".
func (rm *ResourceManagerAPI) Apps(ctx context.Context, params map[string]string) ([]map[string]any, error) {
	var doc struct {
		Apps struct {
			App []map[string]any `json:"app"`
		} `json:"apps"`
	}
	if err := metrics.GetJSON(ctx, rm.address, "/ws/v1/cluster/apps", params, &doc); err != nil {
		return nil, err
	}
	return doc.Apps.App, nil
}

// Metrics returns the cluster-wide metrics document.
func (rm *ResourceManagerAPI) Metrics(ctx context.Context) (map[string]any, error) {
	var doc struct {
		ClusterMetrics map[string]any `json:"clusterMetrics"`
	}
	if err := metrics.GetJSON(ctx, rm.address, "/ws/v1/cluster/metrics", nil, &doc); err != nil {
		return nil, err
	}
	return doc.ClusterMetrics, nil
}

// Nodes returns the cluster's node reports.
func (rm *ResourceManagerAPI) Nodes(ctx context.Context) ([]map[string]any, error) {
	var doc struct {
		Nodes struct {
			Node []map[string]any `json:"node"`
		} `json:"nodes"`
	}
	if err := metrics.GetJSON(ctx, rm.address, "/ws/v1/cluster/nodes", nil, &doc); err != nil {
		return nil, err
	}
	return doc.Nodes.Node, nil
}

// Scheduler returns the scheduler info document.
func (rm *ResourceManagerAPI) Scheduler(ctx context.Context) (map[string]any, error) {
	var doc struct {
		Scheduler struct {
			SchedulerInfo map[string]any `json:"schedulerInfo"`
		} `json:"scheduler"`
	}
	if err := metrics.GetJSON(ctx, rm.address, "/ws/v1/cluster/scheduler", nil, &doc); err != nil {
		return nil, err
	}
	return doc.Scheduler.SchedulerInfo, nil
}

// Beans returns the JMX beans exposed by the ResourceManager.
func (rm *ResourceManagerAPI) Beans(ctx context.Context) ([]map[string]any, error) {
	var doc struct {
		Beans []map[string]any `json:"beans"`
	}
	if err := metrics.GetJSON(ctx, rm.address, "/jmx", nil, &doc); err != nil {
		return nil, err
	}
	return doc.Beans, nil
}

// Version returns the cluster's ResourceManager version string, caching it
// after the first successful fetch.
func (rm *ResourceManagerAPI) Version(ctx context.Context) (string, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.version != "" {
		return rm.version, nil
	}
	var doc struct {
		ClusterInfo struct {
			ResourceManagerVersion string `json:"resourceManagerVersion"`
		} `json:"clusterInfo"`
	}
	if err := metrics.GetJSON(ctx, rm.address, "/ws/v1/cluster/info", nil, &doc); err != nil {
		return "", err
	}
	rm.version = doc.ClusterInfo.ResourceManagerVersion
	return rm.version, nil
}

// SemVersion returns the semantic version extracted from the RM's version
// string, or ErrInvalidVersion when none can be found. RM versions regularly
// carry vendor suffixes ("3.2.1-amzn-8"), so we only take the leading
// major.minor.patch triple.
func (rm *ResourceManagerAPI) SemVersion(ctx context.Context) (*semver.Version, error) {
	version, err := rm.Version(ctx)
	if err != nil {
		return nil, err
	}
	m := semVerRegexp.FindString(version)
	if m == "" {
		return nil, errors.Wrapf(ErrInvalidVersion, "%q", version)
	}
	return semver.NewVersion(m)
}

// IsVersionAtLeast reports whether the cluster runs at least the specified
// version ("3.0.0").
func (rm *ResourceManagerAPI) IsVersionAtLeast(ctx context.Context, version string) (bool, error) {
	wanted, err := semver.NewVersion(version)
	if err != nil {
		return false, errors.Wrapf(err, "invalid version %q", version)
	}
	have, err := rm.SemVersion(ctx)
	if err != nil {
		return false, err
	}
	return !have.LessThan(wanted), nil
}
