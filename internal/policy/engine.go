// Package policy runs user supplied Rego rules as checks.
//
// Each rule is a module in package warden evaluated once per resource of its
// kind, with the resource as input. The rule sets `fail` and optionally
// `message`; an undefined `fail` passes.
package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/internal/telemetry"
	"github.com/yairfalse/warden/pkg/resource"
)

// Query is the document every rule module defines.
const Query = "data.warden"

// RegoCheck is a check backed by a prepared Rego query.
type RegoCheck struct {
	meta   check.Metadata
	query  rego.PreparedEvalQuery
	logger *telemetry.Logger
	tracer trace.Tracer
}

// Compile prepares module for evaluation.
func Compile(ctx context.Context, meta check.Metadata, module string) (*RegoCheck, error) {
	prepared, err := rego.New(
		rego.Query(Query),
		rego.Module(meta.ID+".rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy %s: %w", meta.ID, err)
	}
	return &RegoCheck{
		meta:   meta,
		query:  prepared,
		logger: telemetry.NewLogger("policy"),
		tracer: otel.Tracer("github.com/yairfalse/warden/internal/policy"),
	}, nil
}

// Metadata implements check.Check.
func (c *RegoCheck) Metadata() check.Metadata { return c.meta }

// Execute implements check.Check.
func (c *RegoCheck) Execute(ctx context.Context, inv *inventory.Inventory) ([]check.Finding, error) {
	ctx, span := c.tracer.Start(ctx, "policy.execute",
		trace.WithAttributes(attribute.String("check.id", c.meta.ID)))
	defer span.End()

	items := inv.Resources(c.meta.Kind)
	findings := make([]check.Finding, 0, len(items))
	for _, r := range items {
		status, msg, err := c.evaluate(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", r.Identity().ARN, err)
		}
		findings = append(findings, check.NewFinding(c.meta, r, status, msg))
	}

	c.logger.WithContext(ctx).Debug().
		Str("check", c.meta.ID).
		Int("findings", len(findings)).
		Msg("policy evaluated")
	return findings, nil
}

// Decision is the document a rule produces.
type Decision struct {
	Fail    bool   `json:"fail"`
	Message string `json:"message"`
}

func (c *RegoCheck) evaluate(ctx context.Context, r resource.Resource) (check.Status, string, error) {
	input, err := Input(r)
	if err != nil {
		return "", "", err
	}

	rs, err := c.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", err
	}

	var d Decision
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		raw, err := json.Marshal(rs[0].Expressions[0].Value)
		if err != nil {
			return "", "", fmt.Errorf("encode decision: %w", err)
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return "", "", fmt.Errorf("decode decision: %w", err)
		}
	}

	id := r.Identity()
	if d.Fail {
		if d.Message == "" {
			d.Message = fmt.Sprintf("%s %s fails %s.", r.Kind(), id.Name, c.meta.ID)
		}
		return check.StatusFail, d.Message, nil
	}
	if d.Message == "" {
		d.Message = fmt.Sprintf("%s %s passes %s.", r.Kind(), id.Name, c.meta.ID)
	}
	return check.StatusPass, d.Message, nil
}

// Input converts r into the generic document passed to rules. The resource
// kind is added under "kind".
func Input(r resource.Resource) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	doc["kind"] = string(r.Kind())
	return doc, nil
}
