// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package configfeeder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ConfigType identifies a kind of collected configuration.
type ConfigType string

// The configuration kinds the feeder knows how to collect.
const (
	ConfigTypeYarn ConfigType = "yarn"
)

// NodeInfo identifies the Big Data node the configurations were collected on.
type NodeInfo struct {
	// Provider is the cloud provider hosting the cluster, such as "aws".
	Provider string
	// ExternalID is the provider-assigned instance identity of this node.
	ExternalID string
	// ExternalClusterID is the provider-assigned cluster identity.
	ExternalClusterID string
	// IsMaster is true on the cluster manager node.
	IsMaster bool
}

// CollectionResult is one pass of configuration collection on a node.
type CollectionResult struct {
	Node       NodeInfo
	YarnConfig map[string]string
}

// Empty reports whether the pass yielded no configurations at all.
func (r CollectionResult) Empty() bool {
	return len(r.YarnConfig) == 0
}

// YarnConfigHash returns a digest of the YARN configuration, used to skip
// resubmitting configurations the server has already seen.
func (r CollectionResult) YarnConfigHash() string {
	if r.YarnConfig == nil {
		return ""
	}
	canonical, _ := json.Marshal(r.YarnConfig)
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:])
}

// APIError is a non-2xx response from the config feeder API, carrying the
// server's own error detail.
type APIError struct {
	Detail     string
	Path       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s: status %d)", e.Detail, e.Path, e.StatusCode)
}

// The wire shapes of the config feeder API.

type clusterCreate struct {
	Service    string `json:"service"`
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
}

type createClusterRequest struct {
	Cluster       clusterCreate `json:"cluster"`
	AllowExisting bool          `json:"allow_existing"`
}

type createClusterResponse struct {
	Cluster struct {
		ID string `json:"id"`
	} `json:"cluster"`
}

type nodeCreate struct {
	ExternalID string `json:"external_id"`
	IsMaster   bool   `json:"is_master"`
}

type createNodeRequest struct {
	Node          nodeCreate `json:"node"`
	AllowExisting bool       `json:"allow_existing"`
}

type createNodeResponse struct {
	Node struct {
		ID string `json:"id"`
	} `json:"node"`
}

type nodeYarnConfigCreate struct {
	ConfigJSON string `json:"config_json"`
}

type createNodeConfigsRequest struct {
	YarnConfig *nodeYarnConfigCreate `json:"yarn_config,omitempty"`
}

type createNodeConfigsResponse struct {
	YarnConfig *struct {
		ID string `json:"id"`
	} `json:"yarn_config"`
}

type apiErrorBody struct {
	Detail string `json:"detail"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
