// Copyright (c) Granulate. All rights reserved.
// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.

package crigen

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/pkg/errors"
)

// The upstream schema locations below their repository roots.
const (
	gogoProtoPath     = "gogoproto/gogo.proto"
	criV1ProtoPath    = "pkg/apis/runtime/v1/api.proto"
	criV1a2ProtoPath  = "pkg/apis/runtime/v1alpha2/api.proto"
	generatedBackup   = ".bak"
	packageMarkerName = "doc.go"
)

// The literal patch texts. Substitution is purely textual: if upstream ever
// rewords these lines the patch silently becomes a no-op and the compile step
// fails with an unresolved-import diagnostic instead.
const (
	gogoImportUpstream = `import "github.com/gogo/protobuf/gogoproto/gogo.proto";`
	gogoImportStaged   = `import "gogoproto/gogo.proto";`

	gogoPackageUpstream = `option go_package = "github.com/gogo/protobuf/gogoproto";`
	gogoPackageStaged   = `option go_package = "gogoproto";`
)

// Generator runs the CRI stub generation pipeline: output tree preparation,
// pinned schema fetch, import patching, compilation, generated-import
// patching and cleanup, strictly in that order and failing fast on the first
// broken step. A failed run may leave a half populated output tree behind;
// discard it before retrying.
type Generator struct {
	cfg Config
}

// New returns a Generator for the given configuration.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// criDir is the directory the generated packages end up in.
func (g *Generator) criDir() string {
	return filepath.Join(g.cfg.OutputRoot, "containers", "cri")
}

// stagingDir holds the fetched and patched schema sources for the duration of
// a run; Cleanup removes it.
func (g *Generator) stagingDir() string {
	return filepath.Join(g.cfg.OutputRoot, ".staging")
}

// Run executes the whole pipeline. Single pass, no retries, no resumption: a
// broken fetch or compile aborts the run with the underlying diagnostic.
func (g *Generator) Run(ctx context.Context) error {
	if err := g.PrepareTree(); err != nil {
		return err
	}
	schemas := []struct {
		baseURL string
		ref     string
		path    string
		patches [][2]string
	}{
		{g.cfg.GogoBaseURL, g.cfg.GogoRef, gogoProtoPath,
			[][2]string{{gogoPackageUpstream, gogoPackageStaged}}},
		{g.cfg.CRIBaseURL, g.cfg.CRIRef, criV1ProtoPath,
			[][2]string{{gogoImportUpstream, gogoImportStaged}}},
		{g.cfg.CRIBaseURL, g.cfg.CRIRef, criV1a2ProtoPath,
			[][2]string{{gogoImportUpstream, gogoImportStaged}}},
	}
	for _, schema := range schemas {
		text, err := g.FetchSchema(ctx, schema.baseURL, schema.ref, schema.path)
		if err != nil {
			return err
		}
		for _, patch := range schema.patches {
			text = PatchImport(text, patch[0], patch[1])
		}
		staged := filepath.Join(g.stagingDir(), stagedName(schema.path))
		if err := os.WriteFile(staged, []byte(text), 0o644); err != nil {
			return errors.Wrapf(err, "failed to stage schema %q", staged)
		}
	}
	// The dependency schema compiles without service stubs, the API schemas
	// with them.
	if err := g.Compile(ctx, false, filepath.Join(g.stagingDir(), stagedName(gogoProtoPath))); err != nil {
		return err
	}
	if err := g.Compile(ctx, true,
		filepath.Join(g.stagingDir(), stagedName(criV1ProtoPath)),
		filepath.Join(g.stagingDir(), stagedName(criV1a2ProtoPath))); err != nil {
		return err
	}
	mapping := map[string]string{
		`_ "gogoproto"`: `_ "` + g.cfg.Module + `/containers/cri/gogoproto"`,
	}
	for _, version := range []string{"v1", "v1alpha2"} {
		generated := filepath.Join(g.criDir(), version, "api.pb.go")
		if err := PatchGeneratedImports(generated, mapping); err != nil {
			return err
		}
	}
	return g.Cleanup()
}

// PrepareTree creates the output directory structure together with the
// staging area and drops a package marker file into every directory of the
// generated tree. Idempotent: markers already in place are left untouched.
func (g *Generator) PrepareTree() error {
	for _, dir := range []string{"gogoproto", "v1", "v1alpha2"} {
		if err := os.MkdirAll(filepath.Join(g.criDir(), dir), 0o755); err != nil {
			return errors.Wrap(err, "failed to create output tree")
		}
		if err := os.MkdirAll(filepath.Join(g.stagingDir(), dir), 0o755); err != nil {
			return errors.Wrap(err, "failed to create staging tree")
		}
	}
	markers := []string{
		g.cfg.OutputRoot,
		filepath.Join(g.cfg.OutputRoot, "containers"),
		g.criDir(),
		filepath.Join(g.criDir(), "gogoproto"),
		filepath.Join(g.criDir(), "v1"),
		filepath.Join(g.criDir(), "v1alpha2"),
	}
	for _, dir := range markers {
		if err := writePackageMarker(dir); err != nil {
			return err
		}
	}
	return nil
}

// FetchSchema retrieves a schema source pinned to an explicit upstream ref.
// One GET, no retries and no timeout of its own; an unavailable upstream
// aborts the run.
func (g *Generator) FetchSchema(ctx context.Context, baseURL string, ref string, path string) (string, error) {
	client := fastshot.NewClient(baseURL).
		Config().SetFollowRedirects(true).
		Build()
	resp, err := client.GET("/" + ref + "/" + path).Context().Set(ctx).Send()
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch %s/%s/%s", baseURL, ref, path)
	}
	defer resp.Body().Close()
	if resp.Status().IsError() {
		return "", errors.Errorf("failed to fetch %s/%s/%s: status %d",
			baseURL, ref, path, resp.Status().Code())
	}
	text, err := resp.Body().AsString()
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s/%s/%s", baseURL, ref, path)
	}
	return text, nil
}

// PatchImport replaces every exact occurrence of from with to. No parsing and
// no partial-match tolerance; a pattern that never matches leaves the text
// unchanged.
func PatchImport(text string, from string, to string) string {
	return strings.ReplaceAll(text, from, to)
}

// Compile invokes the protobuf compiler on the staged schemas, emitting the
// generated code into the output tree; with emitGRPC the service stubs are
// generated alongside the serialization code. Compiler diagnostics are
// surfaced verbatim on failure.
func (g *Generator) Compile(ctx context.Context, emitGRPC bool, protos ...string) error {
	out := "--gogofast_out="
	if emitGRPC {
		out += "plugins=grpc,"
	}
	out += "paths=source_relative:" + g.criDir()
	args := append([]string{"-I", g.stagingDir(), out}, protos...)
	cmd := exec.CommandContext(ctx, g.cfg.Protoc, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed: %s",
			g.cfg.Protoc, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// PatchGeneratedImports rewrites the bare, schema-derived import names inside
// a generated file to the full module paths of the target namespace, keeping
// a backup of the original next to it.
func PatchGeneratedImports(path string, mapping map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read generated file %q", path)
	}
	if err := os.WriteFile(path+generatedBackup, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to back up generated file %q", path)
	}
	text := string(data)
	for from, to := range mapping {
		text = PatchImport(text, from, to)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return errors.Wrapf(err, "failed to rewrite generated file %q", path)
	}
	return nil
}

// Cleanup removes the staging area and the patch backups, leaving only
// generated code and package markers in the output tree.
func (g *Generator) Cleanup() error {
	if err := os.RemoveAll(g.stagingDir()); err != nil {
		return errors.Wrap(err, "failed to remove staging tree")
	}
	return filepath.WalkDir(g.cfg.OutputRoot, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, generatedBackup) || strings.HasSuffix(path, ".proto") {
			if err := os.Remove(path); err != nil {
				return errors.Wrapf(err, "failed to remove %q", path)
			}
		}
		return nil
	})
}

// stagedName maps an upstream schema path to its place in the staging area;
// the last two path elements already are unique across the schema set.
func stagedName(upstreamPath string) string {
	dir := filepath.Base(filepath.Dir(upstreamPath))
	return filepath.Join(dir, filepath.Base(upstreamPath))
}

// writePackageMarker drops a minimal Go source file into dir so the directory
// is an importable package even before (or without) generated code in it.
func writePackageMarker(dir string) error {
	marker := filepath.Join(dir, packageMarkerName)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	content := "// Copyright (c) Granulate. All rights reserved.\n" +
		"// Licensed under the AGPL3 License. See LICENSE.md in the project root for license information.\n" +
		"\n" +
		"// Package " + packageName(dir) + " is generated; do not edit manually.\n" +
		"package " + packageName(dir) + "\n"
	if err := os.WriteFile(marker, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write package marker %q", marker)
	}
	return nil
}

// packageName derives a valid Go package identifier from the directory name.
func packageName(dir string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		default:
			return -1
		}
	}, filepath.Base(dir))
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "generated"
	}
	return name
}
