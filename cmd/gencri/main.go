// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

// gencri regenerates the checked-in CRI protobuf/gRPC bindings. The generated
// code is the durable output; schema downloads and backups are intermediate
// and removed at the end of a successful run.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/granulate/gutils/crigen"
)

func newRootCmd() *cobra.Command {
	var configPath string
	var outputRoot string
	var protoc string
	cmd := &cobra.Command{
		Use:   "gencri",
		Short: "Regenerate the CRI protobuf/gRPC bindings from pinned upstream schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := crigen.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = crigen.LoadConfig(configPath); err != nil {
					return err
				}
			}
			if outputRoot != "" {
				cfg.OutputRoot = outputRoot
			}
			if protoc != "" {
				cfg.Protoc = protoc
			}
			return crigen.New(cfg).Run(cmd.Context())
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&outputRoot, "output", "o", "", "output root directory, overriding the configuration")
	cmd.Flags().StringVar(&protoc, "protoc", "", "protobuf compiler binary, overriding the configuration")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gencri:", err)
		os.Exit(1)
	}
}
