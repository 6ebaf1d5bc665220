// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package configfeeder

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/granulate/gutils/metrics"
)

// defaultResourceManagerAddress is the YARN ResourceManager webapp on its
// default port, as seen from a cluster node.
const defaultResourceManagerAddress = "http://localhost:8088"

// YarnCollector reads the effective YARN configuration off the cluster
// manager's /conf endpoint, keeping the yarn.* properties.
type YarnCollector struct {
	address string
}

var _ Collector = (*YarnCollector)(nil)

// NewYarnCollector collects from the ResourceManager webapp at the given
// address.
func NewYarnCollector(address string) *YarnCollector {
	return &YarnCollector{address: address}
}

// Collect returns the node's yarn.* configuration properties.
func (yc *YarnCollector) Collect(ctx context.Context, _ NodeInfo) (map[string]string, error) {
	var doc struct {
		Properties []struct {
			Key      string `json:"key"`
			Value    string `json:"value"`
			Resource string `json:"resource"`
		} `json:"properties"`
	}
	if err := metrics.GetJSON(ctx, yc.address, "/conf", nil, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to read YARN configuration")
	}
	config := map[string]string{}
	for _, property := range doc.Properties {
		if !strings.HasPrefix(property.Key, "yarn.") {
			continue
		}
		config[property.Key] = property.Value
	}
	if len(config) == 0 {
		return nil, nil
	}
	return config, nil
}
