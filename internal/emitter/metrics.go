package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/report"
)

// FindingsRecorder counts findings. Implemented by telemetry.Provider.
type FindingsRecorder interface {
	RecordFindings(ctx context.Context, checkID, severity, status string, n int)
}

type findingLabels struct {
	checkID  string
	severity check.Severity
	status   check.Status
}

// MetricsEmitter exposes audit results as OTEL metrics, which the Prometheus
// exporter serves.
type MetricsEmitter struct {
	meter    metric.Meter
	recorder FindingsRecorder

	openFindings  metric.Int64ObservableGauge
	findingDrifts metric.Int64Counter

	// State for observable gauge
	mu   sync.RWMutex
	open map[findingLabels]int64

	drift *DriftTracker
}

// NewMetricsEmitter creates a metrics emitter. A nil recorder skips the
// findings counter.
func NewMetricsEmitter(recorder FindingsRecorder) (*MetricsEmitter, error) {
	e := &MetricsEmitter{
		meter:    otel.Meter("warden"),
		recorder: recorder,
		open:     make(map[findingLabels]int64),
		drift:    NewDriftTracker(),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *MetricsEmitter) initMetrics() error {
	var err error

	e.openFindings, err = e.meter.Int64ObservableGauge(
		"warden_open_findings",
		metric.WithDescription("Failing findings in the latest audit"),
		metric.WithInt64Callback(e.observeOpen),
	)
	if err != nil {
		return fmt.Errorf("create open_findings gauge: %w", err)
	}

	e.findingDrifts, err = e.meter.Int64Counter(
		"warden_finding_changes_total",
		metric.WithDescription("Findings that opened or resolved between audits"),
	)
	if err != nil {
		return fmt.Errorf("create finding_changes counter: %w", err)
	}

	return nil
}

// Emit records rep as metrics.
func (e *MetricsEmitter) Emit(ctx context.Context, rep *report.Report) error {
	counts := make(map[findingLabels]int)
	open := make(map[findingLabels]int64)
	for _, f := range rep.Findings {
		l := findingLabels{checkID: f.CheckID, severity: f.Severity, status: f.Status}
		counts[l]++
		if f.Status == check.StatusFail {
			open[l]++
		}
	}

	if e.recorder != nil {
		for l, n := range counts {
			e.recorder.RecordFindings(ctx, l.checkID, string(l.severity), string(l.status), n)
		}
	}

	unobserved := UnobservedIn(rep)
	e.emitDrift(ctx, rep, unobserved)

	e.mu.Lock()
	e.open = open
	e.mu.Unlock()

	e.drift.Update(rep.Findings, unobserved)
	return nil
}

// emitDrift counts and logs findings whose failing state changed.
func (e *MetricsEmitter) emitDrift(ctx context.Context, rep *report.Report, unobserved Unobserved) {
	drift := e.drift.ComputeDrift(rep.Findings, unobserved)
	if drift == nil {
		// First audit - baseline established
		return
	}

	for _, d := range drift {
		e.findingDrifts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check", d.Finding.CheckID),
			attribute.String("severity", string(d.Finding.Severity)),
			attribute.String("change_type", string(d.Type)),
		))

		log.Info().
			Str("run_id", rep.RunID).
			Str("check", d.Finding.CheckID).
			Str("arn", d.Finding.ResourceARN).
			Str("region", d.Finding.Region).
			Str("change", string(d.Type)).
			Msg("finding changed")
	}
}

// observeOpen is the callback for the open_findings gauge.
func (e *MetricsEmitter) observeOpen(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for l, n := range e.open {
		o.Observe(n, metric.WithAttributes(
			attribute.String("check", l.checkID),
			attribute.String("severity", string(l.severity)),
		))
	}
	return nil
}

// Close is a no-op for the metrics emitter.
func (e *MetricsEmitter) Close() error {
	return nil
}
