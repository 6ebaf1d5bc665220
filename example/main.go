// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

// Lists the containers of whatever runtime answers on this host, CRI runtimes
// first, then a plain Docker daemon.
package main

import (
	"context"
	"fmt"

	"github.com/granulate/gutils/containers"
	"github.com/granulate/gutils/containers/cri"
	"github.com/granulate/gutils/containers/moby"
)

func connect(ctx context.Context) (containers.Client, error) {
	if client, err := cri.NewCriClient(ctx); err == nil {
		return client, nil
	}
	return moby.NewDockerClient(ctx)
}

func main() {
	ctx := context.Background()
	client, err := connect(ctx)
	if err != nil {
		panic(err)
	}
	defer client.Close()
	fmt.Printf("connected to %v\n", client.Runtimes())

	cntrs, err := client.List(ctx, true)
	if err != nil {
		panic(err)
	}
	for _, container := range cntrs {
		fmt.Printf("  %s\n", container)
	}
}
