// Package engine runs one complete audit: discover, seal, check, report.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/warden/internal/audit"
	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/discovery"
	"github.com/yairfalse/warden/internal/emitter"
	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/internal/report"
	"github.com/yairfalse/warden/internal/telemetry"
	"github.com/yairfalse/warden/pkg/resource"
)

// AuditRecorder records completed audits. Implemented by telemetry.Provider.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, account string, d time.Duration, degraded bool)
}

// CheckSelector picks check ids to run.
type CheckSelector interface {
	Selects(id string) bool
}

// ResourceScope describes the ARN patterns an audit is limited to.
// Implemented by filter.Filter.
type ResourceScope interface {
	IsEmpty() bool
	Patterns() []string
}

// Options configures an Engine.
type Options struct {
	Context   *audit.Context
	Clients   discovery.Clients
	Fanout    fanout.Options
	Kinds     []resource.Kind // empty means all
	Checks    *check.Runner
	Selector  CheckSelector   // nil runs every registered check
	Resources ResourceScope   // optional, recorded on the report
	Emitter   emitter.Emitter // optional
	Recorder  AuditRecorder   // optional
}

// Engine coordinates discover, check and emit.
type Engine struct {
	opts   Options
	logger *telemetry.Logger
	tracer trace.Tracer
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Context == nil {
		return nil, fmt.Errorf("audit context required")
	}
	if opts.Checks == nil {
		return nil, fmt.Errorf("check runner required")
	}
	return &Engine{
		opts:   opts,
		logger: telemetry.NewLogger("engine"),
		tracer: otel.Tracer("github.com/yairfalse/warden/internal/engine"),
	}, nil
}

// SelectedChecks returns the registered check ids the selector picks, in
// registration order.
func (e *Engine) SelectedChecks() []string {
	var ids []string
	for _, id := range e.opts.Checks.IDs() {
		if e.opts.Selector == nil || e.opts.Selector.Selects(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Run performs one audit. Region and check failures degrade the report
// without failing the run; only a failing emitter or an invalid run returns
// an error. The report is returned even when emitting fails.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	actx := e.opts.Context
	rep := &report.Report{
		RunID:     uuid.NewString(),
		AccountID: actx.AccountID(),
		Partition: actx.Partition(),
		Regions:   actx.Regions(),
		StartedAt: time.Now().UTC(),
	}
	if scope := e.opts.Resources; scope != nil && !scope.IsEmpty() {
		rep.Resources = scope.Patterns()
	}
	ctx, span := e.tracer.Start(ctx, "engine.run", trace.WithAttributes(
		attribute.String("run.id", rep.RunID),
		attribute.String("account.id", rep.AccountID),
	))
	defer span.End()

	logger := e.logger.WithContext(ctx).With().Str("run_id", rep.RunID).Logger()

	logger.Info().
		Str("account", rep.AccountID).
		Strs("regions", rep.Regions).
		Strs("resource_filter", rep.Resources).
		Msg("starting audit")

	// 1. Discover resources
	inv := inventory.New(actx)
	d := discovery.New(actx, fanout.New(e.opts.Fanout), e.opts.Clients)
	rep.Degraded = report.RegionFailures(inv.Discover(ctx, d, e.opts.Kinds))

	// 2. Freeze the inventory
	inv.Seal()

	// 3. Run checks
	ids := e.SelectedChecks()
	if len(ids) == 0 {
		rep.Findings = []check.Finding{}
	} else {
		res, err := e.opts.Checks.RunAll(ctx, inv, ids)
		if err != nil {
			return nil, fmt.Errorf("run checks: %w", err)
		}
		rep.Findings = res.Findings
		rep.CheckFailures = report.CheckFailures(res.Failures)
	}

	rep.Summary = report.Summarize(rep.Findings)
	rep.Duration = time.Since(rep.StartedAt)

	if e.opts.Recorder != nil {
		e.opts.Recorder.RecordAudit(ctx, rep.AccountID, rep.Duration, rep.IsDegraded())
	}

	logger.Info().
		Int("findings", rep.Summary.Total).
		Int("failed", rep.Summary.Failed).
		Int("degraded_regions", len(rep.Degraded)).
		Int("check_failures", len(rep.CheckFailures)).
		Dur("duration", rep.Duration).
		Msg("audit complete")

	// 4. Emit
	if e.opts.Emitter != nil {
		if err := e.opts.Emitter.Emit(ctx, rep); err != nil {
			return rep, fmt.Errorf("emit report: %w", err)
		}
	}
	return rep, nil
}
