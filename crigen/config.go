// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package crigen

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The upstream pins; regeneration at a later date must reproduce byte
// identical schema inputs, so moving refs such as "master" are never used.
const (
	DefaultCRIRef  = "kubernetes-1.25.16"
	DefaultGogoRef = "v1.3.2"

	defaultCRIBaseURL  = "https://raw.githubusercontent.com/kubernetes/cri-api"
	defaultGogoBaseURL = "https://raw.githubusercontent.com/gogo/protobuf"

	defaultModule     = "github.com/granulate/gutils/generated"
	defaultOutputRoot = "generated"
	defaultProtoc     = "protoc"
)

// Config controls a single generation run. The zero value is not usable;
// start from DefaultConfig or LoadConfig.
type Config struct {
	// OutputRoot is the directory the generated tree is placed under.
	OutputRoot string `yaml:"output_root"`
	// Module is the import path the generated packages live at, used when
	// rewriting the bare import names the compiler emits.
	Module string `yaml:"module"`
	// Protoc names the protobuf compiler binary, resolved through PATH
	// unless given as a path.
	Protoc string `yaml:"protoc"`

	CRIRef  string `yaml:"cri_ref"`
	GogoRef string `yaml:"gogo_ref"`

	// The download locations; only ever overridden in tests.
	CRIBaseURL  string `yaml:"cri_base_url"`
	GogoBaseURL string `yaml:"gogo_base_url"`
}

// DefaultConfig returns the configuration reproducing the checked-in
// bindings.
func DefaultConfig() Config {
	return Config{
		OutputRoot:  defaultOutputRoot,
		Module:      defaultModule,
		Protoc:      defaultProtoc,
		CRIRef:      DefaultCRIRef,
		GogoRef:     DefaultGogoRef,
		CRIBaseURL:  defaultCRIBaseURL,
		GogoBaseURL: defaultGogoBaseURL,
	}
}

// LoadConfig reads a YAML configuration file, filling in defaults for any
// setting the file leaves out.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read configuration %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "malformed configuration %q", path)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid configuration %q", path)
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.OutputRoot == "" {
		return errors.New("output_root must not be empty")
	}
	if cfg.Module == "" {
		return errors.New("module must not be empty")
	}
	if cfg.Protoc == "" {
		return errors.New("protoc must not be empty")
	}
	if cfg.CRIRef == "" || cfg.GogoRef == "" {
		return errors.New("upstream refs must not be empty")
	}
	return nil
}
