// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package configfeeder

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/pkg/errors"
)

// DefaultServerAddress is the production config feeder API endpoint.
const DefaultServerAddress = "https://api.granulate.io/config-feeder/api/v1"

// requestTimeout bounds every single API request.
const requestTimeout = 3 * time.Second

// apiKeyHeader carries the caller's token on every request.
const apiKeyHeader = "GProfiler-API-Key"

// Collector gathers one kind of configuration from the node the process runs
// on; a nil map with a nil error means there is nothing to report.
type Collector interface {
	Collect(ctx context.Context, node NodeInfo) (map[string]string, error)
}

// Client submits a node's Big Data configurations to the config feeder
// service. Cluster and node registration happen lazily on first submission;
// unchanged configurations are not resubmitted.
type Client struct {
	api       fastshot.ClientHttpMethods
	service   string
	clusterID string
	yarn      Collector
	lastHash  map[ConfigType]map[string]string
}

// ClientOpt is a configuration option for a new Client.
type ClientOpt func(*clientOpts)

type clientOpts struct {
	serverAddress string
	yarn          Collector
}

// WithServerAddress submits to the specified API endpoint instead of the
// production one.
func WithServerAddress(address string) ClientOpt {
	return func(o *clientOpts) { o.serverAddress = strings.TrimRight(address, "/") }
}

// WithYarnCollector replaces the default ResourceManager-backed YARN
// configuration collector; a nil collector disables YARN collection.
func WithYarnCollector(collector Collector) ClientOpt {
	return func(o *clientOpts) { o.yarn = collector }
}

// NewClient returns a config feeder client authenticating with the given API
// token and reporting configurations under the given service name.
func NewClient(token string, service string, opts ...ClientOpt) (*Client, error) {
	if token == "" || service == "" {
		return nil, errors.New("token and service must be provided")
	}
	options := clientOpts{
		serverAddress: DefaultServerAddress,
		yarn:          NewYarnCollector(defaultResourceManagerAddress),
	}
	for _, opt := range opts {
		opt(&options)
	}
	api := fastshot.NewClient(options.serverAddress).
		Config().SetTimeout(requestTimeout).
		Header().Add("Accept", "application/json").
		Header().Add(apiKeyHeader, token).
		Build()
	return &Client{
		api:      api,
		service:  service,
		yarn:     options.yarn,
		lastHash: map[ConfigType]map[string]string{},
	}, nil
}

// Collect gathers the node's configurations and submits whatever changed
// since the previous pass. A node without any configurations to report is not
// an error.
func (c *Client) Collect(ctx context.Context, node NodeInfo) error {
	result := CollectionResult{Node: node}
	if c.yarn != nil {
		yarnConfig, err := c.yarn.Collect(ctx, node)
		if err != nil {
			return errors.Wrap(err, "YARN config collection failed")
		}
		result.YarnConfig = yarnConfig
	}
	if result.Empty() {
		return nil
	}
	return c.submitNodeConfigs(ctx, result)
}

func (c *Client) submitNodeConfigs(ctx context.Context, result CollectionResult) error {
	request := c.configsRequest(result)
	if request == nil {
		// configs are up to date since the last push.
		return nil
	}
	nodeID, err := c.registerNode(ctx, result.Node)
	if err != nil {
		return err
	}
	var response createNodeConfigsResponse
	if err := c.post(ctx, "/nodes/"+nodeID+"/configs", request, &response); err != nil {
		return err
	}
	if response.YarnConfig != nil {
		c.rememberHash(ConfigTypeYarn, result.Node.ExternalID, result.YarnConfigHash())
	}
	return nil
}

func (c *Client) registerNode(ctx context.Context, node NodeInfo) (string, error) {
	if c.clusterID == "" {
		if err := c.registerCluster(ctx, node.Provider, node.ExternalClusterID); err != nil {
			return "", err
		}
	}
	request := createNodeRequest{
		Node: nodeCreate{
			ExternalID: node.ExternalID,
			IsMaster:   node.IsMaster,
		},
		AllowExisting: true,
	}
	var response createNodeResponse
	if err := c.post(ctx, "/clusters/"+c.clusterID+"/nodes", request, &response); err != nil {
		return "", err
	}
	return response.Node.ID, nil
}

func (c *Client) registerCluster(ctx context.Context, provider string, externalID string) error {
	request := createClusterRequest{
		Cluster: clusterCreate{
			Service:    c.service,
			Provider:   provider,
			ExternalID: externalID,
		},
		AllowExisting: true,
	}
	var response createClusterResponse
	if err := c.post(ctx, "/clusters", request, &response); err != nil {
		return err
	}
	c.clusterID = response.Cluster.ID
	return nil
}

// configsRequest assembles the submission request, leaving out configurations
// unchanged since the last successful push; nil means nothing needs pushing.
func (c *Client) configsRequest(result CollectionResult) *createNodeConfigsRequest {
	if result.YarnConfig == nil {
		return nil
	}
	hash := result.YarnConfigHash()
	if c.lastHash[ConfigTypeYarn][result.Node.ExternalID] == hash {
		return nil
	}
	configJSON, _ := json.Marshal(result.YarnConfig)
	return &createNodeConfigsRequest{
		YarnConfig: &nodeYarnConfigCreate{ConfigJSON: string(configJSON)},
	}
}

func (c *Client) rememberHash(configType ConfigType, externalID string, hash string) {
	if c.lastHash[configType] == nil {
		c.lastHash[configType] = map[string]string{}
	}
	c.lastHash[configType][externalID] = hash
}

// post issues one API request and decodes the response; non-2xx responses
// become an *APIError carrying the server's error detail.
func (c *Client) post(ctx context.Context, path string, request any, out any) error {
	resp, err := c.api.POST(path).
		Context().Set(ctx).
		Body().AsJSON(request).
		Send()
	if err != nil {
		return errors.Wrapf(err, "could not connect to config feeder at %s", path)
	}
	defer resp.Body().Close()
	if resp.Status().IsError() {
		body, _ := resp.Body().AsString()
		return apiError(path, resp.Status().Code(), body)
	}
	if err := resp.Body().AsJSON(out); err != nil {
		return errors.Wrapf(err, "malformed response from %s", path)
	}
	return nil
}

// apiError extracts the server's own error message out of an error response
// body, falling back to the raw body text.
func apiError(path string, statusCode int, body string) *APIError {
	var parsed apiErrorBody
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		if parsed.Detail != "" {
			return &APIError{Detail: parsed.Detail, Path: path, StatusCode: statusCode}
		}
		if parsed.Error != nil {
			return &APIError{Detail: parsed.Error.Message, Path: path, StatusCode: statusCode}
		}
	}
	return &APIError{Detail: strings.TrimSpace(body), Path: path, StatusCode: statusCode}
}
