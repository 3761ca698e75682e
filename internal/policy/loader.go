package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/pkg/resource"
)

// Definition is one custom check in a checks file.
type Definition struct {
	check.Metadata `yaml:",inline"`
	Rego           string `yaml:"rego"`
}

type file struct {
	Checks []Definition `yaml:"checks"`
}

// Parse decodes and compiles a checks file.
func Parse(ctx context.Context, data []byte) ([]*RegoCheck, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse custom checks: %w", err)
	}

	known := make(map[resource.Kind]bool)
	for _, k := range resource.Kinds() {
		known[k] = true
	}

	out := make([]*RegoCheck, 0, len(f.Checks))
	for i, def := range f.Checks {
		if def.ID == "" {
			return nil, fmt.Errorf("custom check %d: id required", i)
		}
		if !known[def.Kind] {
			return nil, fmt.Errorf("custom check %s: unknown kind %q", def.ID, def.Kind)
		}
		if def.Severity == "" {
			def.Severity = check.SeverityMedium
		}
		if !def.Severity.Valid() {
			return nil, fmt.Errorf("custom check %s: invalid severity %q", def.ID, def.Severity)
		}
		if def.Service == "" {
			def.Service = "custom"
		}
		c, err := Compile(ctx, def.Metadata, def.Rego)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Load reads and compiles the checks file at path.
func Load(ctx context.Context, path string) ([]*RegoCheck, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read custom checks: %w", err)
	}
	return Parse(ctx, data)
}
