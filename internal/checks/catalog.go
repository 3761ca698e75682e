// Package checks holds the built-in security checks.
package checks

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/warden/internal/check"
)

//go:embed metadata.yaml
var metadataYAML []byte

type catalogFile struct {
	Checks []check.Metadata `yaml:"checks"`
}

var (
	catalogOnce sync.Once
	catalog     map[string]check.Metadata
	catalogErr  error
)

// ParseCatalog decodes a metadata catalog and validates every entry.
func ParseCatalog(data []byte) (map[string]check.Metadata, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse check catalog: %w", err)
	}
	out := make(map[string]check.Metadata, len(f.Checks))
	for _, m := range f.Checks {
		if m.ID == "" {
			return nil, fmt.Errorf("check catalog: entry without id")
		}
		if _, dup := out[m.ID]; dup {
			return nil, fmt.Errorf("check catalog: duplicate id %q", m.ID)
		}
		if !m.Severity.Valid() {
			return nil, fmt.Errorf("check catalog: %s: invalid severity %q", m.ID, m.Severity)
		}
		out[m.ID] = m
	}
	return out, nil
}

// Catalog returns the embedded metadata of every built-in check.
func Catalog() (map[string]check.Metadata, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = ParseCatalog(metadataYAML)
	})
	return catalog, catalogErr
}

func metadata(id string) check.Metadata {
	c, err := Catalog()
	if err != nil {
		panic(err)
	}
	m, ok := c[id]
	if !ok {
		panic(fmt.Sprintf("check %q missing from catalog", id))
	}
	return m
}

// Builtin returns every built-in check in a stable order.
func Builtin() []check.Check {
	return []check.Check{
		SecurityGroupAnyPort(),
		SecurityGroupPort("ec2_securitygroup_allow_ingress_from_internet_to_tcp_port_memcached_11211", "Memcached", 11211),
		SecurityGroupPort("ec2_securitygroup_allow_ingress_from_internet_to_tcp_port_22", "SSH", 22),
		SecurityGroupPort("ec2_securitygroup_allow_ingress_from_internet_to_tcp_port_3389", "RDP", 3389),
		QueueEncryption(),
		QueueNotPublic(),
		KeyRotation(),
		DBStorageEncrypted(),
		DBNoPublicAccess(),
		TableKMSEncryption(),
	}
}

// Register adds every built-in check to r.
func Register(r *check.Runner) {
	for _, c := range Builtin() {
		r.Register(c)
	}
}
