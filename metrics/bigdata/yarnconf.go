// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package bigdata

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// defaultHadoopConfDir is where yarn-site.xml lives unless HADOOP_CONF_DIR
// says otherwise.
const defaultHadoopConfDir = "/etc/hadoop/conf"

// yarnSite is the parsed property list of a Hadoop yarn-site.xml.
type yarnSite struct {
	Properties []yarnProperty `xml:"property"`
}

type yarnProperty struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

// loadYarnSite reads and parses the yarn-site.xml of the specified master
// process, resolving the configuration directory against the process' own
// filesystem root. A missing file is not an error, just a nil site.
func loadYarnSite(proc process) (*yarnSite, error) {
	confDir := defaultHadoopConfDir
	if env := proc.environ(); env["HADOOP_CONF_DIR"] != "" {
		confDir = env["HADOOP_CONF_DIR"]
	}
	raw, err := os.ReadFile(proc.rootedPath(filepath.Join(confDir, "yarn-site.xml")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read yarn-site.xml")
	}
	var site yarnSite
	if err := xml.Unmarshal(raw, &site); err != nil {
		return nil, errors.Wrap(err, "failed to parse yarn-site.xml")
	}
	return &site, nil
}

// property returns the value of the named property, or "" when absent.
func (s *yarnSite) property(name string) string {
	if s == nil {
		return ""
	}
	for _, prop := range s.Properties {
		if prop.Name == name {
			return prop.Value
		}
	}
	return ""
}

// propertyWithPrefix returns the value of the first property whose name
// starts with the given prefix, or "" when none does. The webapp address may
// be published under scheme-specific names, hence the prefix match.
func (s *yarnSite) propertyWithPrefix(prefix string) string {
	if s == nil {
		return ""
	}
	for _, prop := range s.Properties {
		if strings.HasPrefix(prop.Name, prefix) {
			return prop.Value
		}
	}
	return ""
}
