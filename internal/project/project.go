// Package project loads a ProjectSpec from the on-disk project file: the
// main spuff.yaml plus an optional sibling spuff.secrets.yaml whose env
// section overrides the main file's on merge. Resolution of
// $VAR/${VAR}/${VAR:-default} against the controller's own environment
// happens here, once, before the ProjectSpec is handed to the bootstrap document
// builder — the VM never sees an unresolved value.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spuff-dev/spuff/internal/bootstrap"
	"github.com/spuff-dev/spuff/internal/schema"
)

// FileName is the conventional project file name `up`/`down`/etc. look
// for in the current directory absent an explicit --project-dir override.
const FileName = "spuff.yaml"

// SecretsFileName is the sibling file whose env section overrides the main
// file's env on merge. It is expected to be gitignored; this package
// treats its absence as normal, not an error.
const SecretsFileName = "spuff.secrets.yaml"

type secretsFile struct {
	Env map[string]string `yaml:"env,omitempty"`
}

// Load reads dir/spuff.yaml (and dir/spuff.secrets.yaml if present),
// applies the name default and the secrets-env merge, resolves every env
// value against the controller's environment, and returns the finished
// ProjectSpec ready to embed in a first-boot document.
func Load(dir string) (schema.ProjectSpec, error) {
	return load(dir, os.LookupEnv)
}

// load is Load with an injectable environment lookup, so tests can resolve
// against a fixed map instead of the real process environment.
func load(dir string, lookup func(string) (string, bool)) (schema.ProjectSpec, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.ProjectSpec{}, fmt.Errorf("read project file %s: %w", path, err)
	}

	var spec schema.ProjectSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return schema.ProjectSpec{}, fmt.Errorf("parse project file %s: %w", path, err)
	}

	if spec.Name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		spec.Name = filepath.Base(abs)
	}

	for _, b := range spec.Bundles {
		if !schema.ValidBundles[b] {
			return schema.ProjectSpec{}, fmt.Errorf("project file %s: unknown bundle %q", path, b)
		}
	}
	for _, p := range spec.Ports {
		if p < 1 || p > 65535 {
			return schema.ProjectSpec{}, fmt.Errorf("project file %s: port %d out of range 1-65535", path, p)
		}
	}

	secretsPath := filepath.Join(dir, SecretsFileName)
	if data, err := os.ReadFile(secretsPath); err == nil {
		var secrets secretsFile
		if err := yaml.Unmarshal(data, &secrets); err != nil {
			return schema.ProjectSpec{}, fmt.Errorf("parse secrets file %s: %w", secretsPath, err)
		}
		if len(secrets.Env) > 0 {
			merged := make(map[string]string, len(spec.Env)+len(secrets.Env))
			for k, v := range spec.Env {
				merged[k] = v
			}
			for k, v := range secrets.Env {
				merged[k] = v
			}
			spec.Env = merged
		}
	} else if !os.IsNotExist(err) {
		return schema.ProjectSpec{}, fmt.Errorf("read secrets file %s: %w", secretsPath, err)
	}

	spec.Env = bootstrap.ResolveEnvMap(spec.Env, lookup)

	return spec, nil
}

// EffectiveSize returns the size to request: CLI flag > project
// resources.size > global config default.
func EffectiveSize(spec schema.ProjectSpec, cliFlag, globalDefault string) string {
	if cliFlag != "" {
		return cliFlag
	}
	if spec.Resources != nil && spec.Resources.Size != "" {
		return spec.Resources.Size
	}
	return globalDefault
}

// EffectiveRegion is EffectiveSize's counterpart for region.
func EffectiveRegion(spec schema.ProjectSpec, cliFlag, globalDefault string) string {
	if cliFlag != "" {
		return cliFlag
	}
	if spec.Resources != nil && spec.Resources.Region != "" {
		return spec.Resources.Region
	}
	return globalDefault
}
