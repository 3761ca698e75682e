// Package check defines the check contract, the finding model and the
// runner that dispatches checks by id.
package check

import (
	"context"

	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/pkg/resource"
)

// Status is the outcome of evaluating one resource.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Severity ranks the impact of a failing check.
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityHigh          Severity = "high"
	SeverityMedium        Severity = "medium"
	SeverityLow           Severity = "low"
	SeverityInformational Severity = "informational"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInformational:
		return true
	}
	return false
}

// Metadata is the static description of a check.
type Metadata struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Service     string        `json:"service" yaml:"service"`
	Kind        resource.Kind `json:"kind" yaml:"kind"`
	Severity    Severity      `json:"severity" yaml:"severity"`
	Description string        `json:"description" yaml:"description"`
	Risk        string        `json:"risk,omitempty" yaml:"risk"`
	Remediation string        `json:"remediation,omitempty" yaml:"remediation"`
}

// Finding is the result of one check against one resource.
type Finding struct {
	CheckID       string            `json:"check_id"`
	Title         string            `json:"title"`
	Service       string            `json:"service"`
	Severity      Severity          `json:"severity"`
	Description   string            `json:"description"`
	Kind          resource.Kind     `json:"kind"`
	Region        string            `json:"region"`
	ResourceID    string            `json:"resource_id"`
	ResourceARN   string            `json:"resource_arn"`
	ResourceTags  map[string]string `json:"resource_tags"`
	Status        Status            `json:"status"`
	StatusMessage string            `json:"status_message"`
}

// NewFinding builds a finding for r carrying the check metadata.
func NewFinding(meta Metadata, r resource.Resource, status Status, message string) Finding {
	id := r.Identity()
	return Finding{
		CheckID:       meta.ID,
		Title:         meta.Title,
		Service:       meta.Service,
		Severity:      meta.Severity,
		Description:   meta.Description,
		Kind:          r.Kind(),
		Region:        id.Region,
		ResourceID:    id.ID,
		ResourceARN:   id.ARN,
		ResourceTags:  id.TagsCopy(),
		Status:        status,
		StatusMessage: message,
	}
}

// Check evaluates one rule over a sealed inventory. Implementations must be
// stateless and must not modify the inventory.
type Check interface {
	Metadata() Metadata
	Execute(ctx context.Context, inv *inventory.Inventory) ([]Finding, error)
}

// ResourceCheck emits one finding per selected resource.
type ResourceCheck[T resource.Resource] struct {
	Meta Metadata
	// Select returns the resources the check targets.
	Select func(inv *inventory.Inventory) []T
	// Applies filters targets further. Nil means every selected resource.
	Applies func(T) bool
	// Evaluate decides the status of one resource.
	Evaluate func(T) (Status, string)
}

// Metadata implements Check.
func (c *ResourceCheck[T]) Metadata() Metadata { return c.Meta }

// Execute implements Check.
func (c *ResourceCheck[T]) Execute(ctx context.Context, inv *inventory.Inventory) ([]Finding, error) {
	items := c.Select(inv)
	findings := make([]Finding, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.Applies != nil && !c.Applies(item) {
			continue
		}
		status, msg := c.Evaluate(item)
		findings = append(findings, NewFinding(c.Meta, item, status, msg))
	}
	return findings, nil
}
