// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package bigdata

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/granulate/gutils/metrics"
	"github.com/granulate/gutils/metrics/yarn"
)

// ClusterMode identifies the cluster manager a Spark deployment runs under.
type ClusterMode string

// The cluster managers we know how to sample.
const (
	ModeYARN       ClusterMode = "yarn"
	ModeStandalone ClusterMode = "standalone"
	ModeMesos      ClusterMode = "mesos"
)

// sparkMasterClassName is the JVM entry class of the Spark standalone master.
const sparkMasterClassName = "org.apache.spark.deploy.master.Master"

// ErrNoCluster is returned when no cluster-manager master process could be
// found on this node.
var ErrNoCluster = errors.New("no cluster manager found on this node")

// Sampler discovers the cluster manager running on this node and collects
// metrics snapshots from it. When master address and mode aren't supplied
// they are guessed from the processes running on this node, so the sampler
// only produces data on actual master nodes.
type Sampler struct {
	masterAddress string
	mode          ClusterMode
	labels        map[string]string
	collectors    []metrics.Collector
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithMaster presets the master address ("host:port") and cluster mode,
// skipping discovery guesswork.
func WithMaster(address string, mode ClusterMode) Option {
	return func(s *Sampler) {
		s.masterAddress = "http://" + address
		s.mode = mode
	}
}

// WithLabels attaches the specified labels to every collected sample.
func WithLabels(labels map[string]string) Option {
	return func(s *Sampler) {
		s.labels = labels
	}
}

// NewSampler returns a sampler; call Discover before Snapshot unless the
// master has been preset with WithMaster.
func NewSampler(opts ...Option) *Sampler {
	s := &Sampler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MasterAddress returns the discovered or preset master base URL.
func (s *Sampler) MasterAddress() string { return s.masterAddress }

// Mode returns the discovered or preset cluster mode.
func (s *Sampler) Mode() ClusterMode { return s.mode }

// Discover resolves the cluster master address and mode, if not preset, and
// wires up the matching collectors. It reports false without error when this
// node runs no cluster-manager master (or isn't the collecting master of a
// multi-master YARN setup), so callers can retry later.
func (s *Sampler) Discover(ctx context.Context) (bool, error) {
	if s.masterAddress == "" || s.mode == "" {
		ok, err := s.guessClusterMode()
		if err != nil || !ok {
			return false, err
		}
	}
	s.initCollectors()
	return true, nil
}

// Snapshot runs all wired-up collectors and returns their samples as one
// timestamped snapshot. Without collectors (discovery didn't succeed yet)
// Snapshot returns nil.
func (s *Sampler) Snapshot(ctx context.Context) (*metrics.MetricsSnapshot, error) {
	if len(s.collectors) == 0 {
		return nil, nil
	}
	collected := []metrics.Sample{}
	for _, collector := range s.collectors {
		samples, err := collector.Collect(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "collector %q failed", collector.Name())
		}
		collected = append(collected, samples...)
	}
	return &metrics.MetricsSnapshot{
		Timestamp: time.Now().UTC(),
		Samples:   collected,
	}, nil
}

// initCollectors wires the collectors matching the discovered cluster mode.
func (s *Sampler) initCollectors() {
	switch s.mode {
	case ModeYARN:
		s.collectors = append(s.collectors, yarn.NewCollector(s.masterAddress, s.labels))
	case ModeStandalone, ModeMesos:
		s.collectors = append(s.collectors, &applicationsCollector{sampler: s})
	}
}

// guessClusterMode scans the node's processes for a known cluster-manager
// master and derives its web UI address.
func (s *Sampler) guessClusterMode() (bool, error) {
	proc, ok := findProcess(func(p process) bool {
		cmdline := p.cmdline()
		return containsArg(cmdline, yarn.ResourceManagerClassName) ||
			containsArg(cmdline, sparkMasterClassName) ||
			strings.Contains(p.exe(), "mesos-master")
	})
	if !ok {
		return false, nil
	}

	cmdline := proc.cmdline()
	switch {
	case containsArg(cmdline, yarn.ResourceManagerClassName):
		site, err := loadYarnSite(proc)
		if err != nil {
			return false, err
		}
		if !isCollectingYarnMaster(site) {
			// multi-master deployment and we're not rm1; sampling here would
			// just duplicate the cluster metrics.
			return false, nil
		}
		s.mode = ModeYARN
		s.masterAddress = "http://" + yarnWebappAddress(site)
	case containsArg(cmdline, sparkMasterClassName):
		s.mode = ModeStandalone
		host := argValue(cmdline, "--host")
		port := argValue(cmdline, "--webui-port")
		if host == "" || port == "" {
			return false, nil
		}
		s.masterAddress = "http://" + host + ":" + port
	default:
		s.mode = ModeMesos
		s.masterAddress = "http://" + nodeHostname() + ":5050"
	}
	return true, nil
}

// isCollectingYarnMaster decides whether this node should run the collection.
// YARN lists the addresses of all masters of a multi-master deployment, so we
// pick the one whose hostname matches rm1 and only collect there; otherwise
// every master would submit the same cluster metrics.
func isCollectingYarnMaster(site *yarnSite) bool {
	rm1 := site.property("yarn.resourcemanager.address.rm1")
	if rm1 == "" {
		// single-master deployment.
		return true
	}
	return strings.HasPrefix(rm1, yarnHostname(site))
}

// yarnWebappAddress derives the RM web UI address from the config, falling
// back to the conventional port on the RM hostname.
func yarnWebappAddress(site *yarnSite) string {
	if address := site.propertyWithPrefix("yarn.resourcemanager.webapp.address"); address != "" {
		return address
	}
	return yarnHostname(site) + ":8088"
}

// yarnHostname returns the configured RM hostname, defaulting to ours.
func yarnHostname(site *yarnSite) string {
	if hostname := site.property("yarn.resourcemanager.hostname"); hostname != "" {
		return hostname
	}
	return nodeHostname()
}

func nodeHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// containsArg reports whether the exact argument appears in the command line.
func containsArg(cmdline []string, arg string) bool {
	for _, a := range cmdline {
		if a == arg {
			return true
		}
	}
	return false
}

// argValue returns the value following the named flag in the command line.
func argValue(cmdline []string, name string) string {
	for i, a := range cmdline {
		if a == name && i+1 < len(cmdline) {
			return cmdline[i+1]
		}
	}
	return ""
}
