// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package metadata

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	fastshot "github.com/opus-domini/fast-shot"
	"github.com/pkg/errors"
)

// The Ganglia sink host property doubles as the driver node address on
// Databricks; the Spark UI listens next to it on a fixed port.
const (
	hostKeyName           = "*.sink.ganglia.host"
	metricsPropertiesPath = "/databricks/spark/conf/metrics.properties"
	defaultWebUIPort      = 40001
)

// The Spark properties carrying the cluster tags; the all-tags property may
// be redacted by workspace policy, in which case the cluster name property is
// the fallback.
const (
	clusterTagsKey  = "spark.databricks.clusterUsageTags.clusterAllTags"
	clusterNameProp = "spark.databricks.clusterUsageTags.clusterName"
	jobNameKey      = "RunName"
	clusterNameKey  = "ClusterName"
)

const (
	discoveryTimeout = 2 * time.Minute
	retryInterval    = 1 * time.Second
	requestTimeout   = 5 * time.Second
)

// sparkStartingUp is what the Spark UI answers instead of JSON while still
// initializing.
const sparkStartingUp = "Spark is starting up. Please wait a while until it's ready"

// Ephemeral job cluster names embed the run ID, which would break name
// stability across runs.
var runIDPattern = regexp.MustCompile(`run-\d+-`)

// ErrJobNameDiscovery is returned (wrapped) for unrecoverable discovery
// failures, as opposed to the cluster simply not being up yet.
var ErrJobNameDiscovery = errors.New("databricks job name discovery failed")

// DatabricksClient discovers the job name of the Databricks cluster this
// process runs on, polling the local Spark UI until the cluster metadata
// becomes available.
type DatabricksClient struct {
	propertiesPath string
	webUIPort      int
}

// DatabricksOpt is a configuration option for a new DatabricksClient.
type DatabricksOpt func(*DatabricksClient)

// WithPropertiesPath reads the metrics properties from the specified file
// instead of the well-known Databricks location.
func WithPropertiesPath(path string) DatabricksOpt {
	return func(dc *DatabricksClient) { dc.propertiesPath = path }
}

// WithWebUIPort expects the Spark UI on the specified port.
func WithWebUIPort(port int) DatabricksOpt {
	return func(dc *DatabricksClient) { dc.webUIPort = port }
}

// NewDatabricksClient returns a new Databricks metadata client.
func NewDatabricksClient(opts ...DatabricksOpt) *DatabricksClient {
	dc := &DatabricksClient{
		propertiesPath: metricsPropertiesPath,
		webUIPort:      defaultWebUIPort,
	}
	for _, opt := range opts {
		opt(dc)
	}
	return dc
}

// errNotYet signals that the cluster is still provisioning and discovery
// should be retried.
var errNotYet = errors.New("cluster still initializing")

// JobName polls the cluster metadata until the job (or cluster) name can be
// extracted, for at most two minutes. An empty name with a nil error means
// the cluster metadata exists but names no job; ephemeral clusters then run
// without a job name.
func (dc *DatabricksClient) JobName(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	var name string
	err := backoff.Retry(func() error {
		metadata, err := dc.clusterTags(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if metadata == nil {
			return errNotYet
		}
		name = nameFromMetadata(metadata)
		return nil
	}, backoff.WithContext(backoff.NewConstantBackOff(retryInterval), ctx))
	if err != nil {
		return "", err
	}
	return name, nil
}

// nameFromMetadata derives a stable, lowercase job name from the cluster
// tags; run IDs embedded in cluster names are stripped.
func nameFromMetadata(metadata map[string]string) string {
	if runName, ok := metadata[jobNameKey]; ok {
		return "job-" + normalizeName(runName)
	}
	if clusterName, ok := metadata[clusterNameKey]; ok {
		return runIDPattern.ReplaceAllString(normalizeName(clusterName), "")
	}
	return ""
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// webUIAddress derives the Spark UI address from the Ganglia sink host in the
// metrics properties; an empty address means the property has not been
// deployed yet.
func (dc *DatabricksClient) webUIAddress() (string, error) {
	properties, err := os.ReadFile(dc.propertiesPath)
	if err != nil {
		return "", errors.Wrapf(ErrJobNameDiscovery, "cannot read %q: %s", dc.propertiesPath, err)
	}
	for _, line := range strings.Split(string(properties), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return "", errors.Wrapf(ErrJobNameDiscovery, "malformed properties line %q", line)
		}
		if key == hostKeyName {
			return value + ":" + strconv.Itoa(dc.webUIPort), nil
		}
	}
	// might happen while provisioning the cluster, retry.
	return "", nil
}

// clusterTags fetches the cluster tags off the first Spark application's
// environment; a nil map with a nil error means not yet available, retry.
func (dc *DatabricksClient) clusterTags(ctx context.Context) (map[string]string, error) {
	if _, err := os.Stat(dc.propertiesPath); err != nil {
		// cluster still initializing, properties not deployed yet.
		return nil, nil
	}
	webUI, err := dc.webUIAddress()
	if err != nil {
		return nil, err
	}
	if webUI == "" {
		return nil, nil
	}
	appsPath := "/api/v1/applications"
	body, err := dc.get(ctx, "http://"+webUI, appsPath)
	if err != nil {
		// the Spark UI might not be up yet, retry.
		return nil, nil
	}
	var apps []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(body), &apps); err != nil {
		if strings.Contains(body, sparkStartingUp) {
			return nil, nil
		}
		return nil, errors.Wrapf(ErrJobNameDiscovery, "malformed applications response %q", body)
	}
	if len(apps) == 0 {
		// no apps yet, retry.
		return nil, nil
	}
	body, err = dc.get(ctx, "http://"+webUI, appsPath+"/"+apps[0].ID+"/environment")
	if err != nil {
		// environment must be accessible once an app is running.
		return nil, errors.Wrapf(ErrJobNameDiscovery, "environment request failed: %s", err)
	}
	var environment struct {
		SparkProperties [][]string `json:"sparkProperties"`
	}
	if err := json.Unmarshal([]byte(body), &environment); err != nil || environment.SparkProperties == nil {
		return nil, errors.Wrapf(ErrJobNameDiscovery, "malformed environment response %q", body)
	}
	properties := map[string]string{}
	for _, property := range environment.SparkProperties {
		if len(property) != 2 {
			continue
		}
		if property[0] == clusterTagsKey || property[0] == clusterNameProp {
			properties[property[0]] = property[1]
		}
	}
	if allTags, ok := properties[clusterTagsKey]; ok && !strings.Contains(allTags, "redacted") {
		var tags []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal([]byte(allTags), &tags); err != nil {
			return nil, errors.Wrapf(ErrJobNameDiscovery, "malformed cluster tags %q", allTags)
		}
		metadata := map[string]string{}
		for _, tag := range tags {
			metadata[tag.Key] = tag.Value
		}
		return metadata, nil
	}
	if clusterName, ok := properties[clusterNameProp]; ok {
		return map[string]string{clusterNameKey: clusterName}, nil
	}
	return nil, errors.Wrapf(ErrJobNameDiscovery,
		"neither %s nor %s present in the Spark properties", clusterTagsKey, clusterNameProp)
}

// get fetches a Spark UI resource, returning the raw body so callers can
// tell JSON from the UI's plain-text startup banner.
func (dc *DatabricksClient) get(ctx context.Context, baseURL string, path string) (string, error) {
	client := fastshot.NewClient(baseURL).
		Config().SetTimeout(requestTimeout).
		Config().SetFollowRedirects(true).
		Build()
	resp, err := client.GET(path).Context().Set(ctx).Send()
	if err != nil {
		return "", errors.Wrapf(err, "failed to query %s%s", baseURL, path)
	}
	defer resp.Body().Close()
	if resp.Status().IsError() {
		return "", errors.Errorf("request to %s%s failed with status %d",
			baseURL, path, resp.Status().Code())
	}
	body, err := resp.Body().AsString()
	if err != nil {
		return "", errors.Wrapf(err, "failed to read response from %s%s", baseURL, path)
	}
	return body, nil
}
