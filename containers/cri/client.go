// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package cri

import (
	"context"
	"time"

	"github.com/containerd/containerd/pkg/dialer"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Client is a CRI runtime service API client for a single runtime endpoint.
// Unfortunately, at this time of writing there isn't a generally reusable CRI
// client available, despite crictl and k8s itself, so we need to roll our
// own. The client negotiates the CRI API version: v1 first, falling back to
// the legacy v1alpha2 for older containerd and CRI-O releases.
type Client struct {
	conn        *grpc.ClientConn
	api         runtimeAPI
	runtimeName string
}

type clientOpts struct {
	timeout     time.Duration
	dialOptions []grpc.DialOption
}

// ClientOpt is an option passed to the creation of a CRI client.
type ClientOpt func(c *clientOpts)

// WithTimeout sets the connection timeout for the CRI client.
func WithTimeout(d time.Duration) ClientOpt {
	return func(c *clientOpts) {
		c.timeout = d
	}
}

// WithDialOpts allows grpc.DialOptions to be set on the CRI client
// connection, replacing the defaults.
func WithDialOpts(opts []grpc.DialOption) ClientOpt {
	return func(c *clientOpts) {
		c.dialOptions = opts
	}
}

// NewClient returns a new CRI API client connected to the CRI service
// instance at the specified address (a unix socket path), with the API
// version negotiated and the runtime name already probed via the Version
// call.
func NewClient(ctx context.Context, address string, opts ...ClientOpt) (*Client, error) {
	var clopts clientOpts
	for _, opt := range opts {
		opt(&clopts)
	}
	if clopts.timeout == 0 {
		clopts.timeout = 10 * time.Second
	}

	backoffConfig := backoff.DefaultConfig
	backoffConfig.MaxDelay = 3 * time.Second
	gopts := []grpc.DialOption{
		grpc.WithBlock(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.FailOnNonTempDialError(true),
		grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoffConfig}),
		grpc.WithContextDialer(dialer.ContextDialer),
	}
	if len(clopts.dialOptions) > 0 {
		gopts = clopts.dialOptions
	}
	dialctx, cancel := context.WithTimeout(ctx, clopts.timeout)
	defer cancel()
	conn, err := grpc.DialContext(dialctx, dialer.DialAddress(address), gopts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %q", address)
	}

	cl := &Client{conn: conn}
	for _, api := range []runtimeAPI{newV1API(conn), newV1alpha2API(conn)} {
		runtimeName, err := api.version(ctx)
		if err != nil {
			continue
		}
		cl.api = api
		cl.runtimeName = runtimeName
		return cl, nil
	}
	_ = conn.Close()
	return nil, errors.Errorf("no supported CRI API version at %q", address)
}

// RuntimeName returns the name the runtime reported in its Version response,
// such as "containerd" or "cri-o".
func (c *Client) RuntimeName() string { return c.runtimeName }

// APIVersion returns the negotiated CRI API version, "v1" or "v1alpha2".
func (c *Client) APIVersion() string { return c.api.apiVersion() }

// Address returns the API endpoint address the connection points to.
func (c *Client) Address() string { return c.conn.Target() }

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// isNotFound reports whether the error is a gRPC NOT_FOUND status; runtimes
// answer with it for containers and sandboxes that have gone away between our
// calls.
func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
