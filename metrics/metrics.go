// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package metrics

import (
	"context"
	"net/url"
	"strings"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/pkg/errors"
)

// requestTimeout bounds every single metrics REST request; collectors run on
// tight schedules and must not hang on a wedged cluster manager.
const requestTimeout = 3 * time.Second

// Sample is a single metric measurement. The field names match the schema
// expected by the ingestion server one-to-one.
type Sample struct {
	Labels map[string]string `json:"labels"`
	Name   string            `json:"name"`
	Value  float64           `json:"value"`
}

// MetricsSnapshot is a consistent, timestamped set of samples collected in a
// single pass.
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Samples   []Sample  `json:"samples"`
}

// Collector collects samples from one specific metrics source, such as a YARN
// ResourceManager or a set of Spark applications.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]Sample, error)
}

// GetJSON queries baseURL/path using HTTP GET and decodes the JSON response
// into out. Query parameters with empty values are dropped, mirroring what
// the cluster-manager REST APIs expect. Non-2xx responses are errors carrying
// the response body.
func GetJSON(ctx context.Context, baseURL string, path string, params map[string]string, out any) error {
	client := fastshot.NewClient(baseURL).
		Config().SetTimeout(requestTimeout).
		Config().SetFollowRedirects(true).
		Header().Add("Accept", "application/json").
		Build()
	req := client.GET(path).Context().Set(ctx)
	for key, value := range params {
		if value == "" {
			continue
		}
		req = req.Query().AddParam(key, value)
	}
	resp, err := req.Send()
	if err != nil {
		return errors.Wrapf(err, "failed to query %s%s", baseURL, path)
	}
	defer resp.Body().Close()
	if resp.Status().IsError() {
		body, _ := resp.Body().AsString()
		return errors.Errorf("request to %s%s failed with status %d: %s",
			baseURL, path, resp.Status().Code(), strings.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	if err := resp.Body().AsJSON(out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s%s", baseURL, path)
	}
	return nil
}

// GetHTML queries baseURL/path using HTTP GET and returns the raw response
// body; used for the few cluster-manager pages that only exist as HTML.
func GetHTML(ctx context.Context, baseURL string, path string, params map[string]string) (string, error) {
	client := fastshot.NewClient(baseURL).
		Config().SetTimeout(requestTimeout).
		Config().SetFollowRedirects(true).
		Build()
	req := client.GET(path).Context().Set(ctx)
	for key, value := range params {
		if value == "" {
			continue
		}
		req = req.Query().AddParam(key, value)
	}
	resp, err := req.Send()
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

// JoinURL joins a base URL with one or more path directories, normalizing
// stray slashes on either side.
func JoinURL(base string, dirs ...string) string {
	joined := base
	for _, dir := range dirs {
		joined = strings.TrimRight(joined, "/") + "/" + strings.TrimLeft(dir, "/")
	}
	return joined
}

// URLPath splits an already-joined URL into its base (scheme://host:port) and
// path parts so it can be fed into the REST helpers.
func URLPath(fullURL string) (base string, path string, err error) {
	parsed, err := url.Parse(fullURL)
	if err != nil {
		return "", "", errors.Wrapf(err, "invalid URL %q", fullURL)
	}
	base = parsed.Scheme + "://" + parsed.Host
	path = parsed.Path
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return base, path, nil
}

// SamplesFromJSON maps the fields of a JSON object onto samples, using the
// fieldname-to-metricname mapping; fields that are absent or not numbers are
// skipped.
func SamplesFromJSON(labels map[string]string, doc map[string]any, metrics map[string]string) []Sample {
	if doc == nil {
		return nil
	}
	samples := []Sample{}
	for fieldName, metricName := range metrics {
		value, ok := doc[fieldName]
		if !ok {
			continue
		}
		number, ok := asNumber(value)
		if !ok {
			continue
		}
		samples = append(samples, Sample{Labels: labels, Name: metricName, Value: number})
	}
	return samples
}

// asNumber coerces the JSON value types we may encounter into a float64.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
