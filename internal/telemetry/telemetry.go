// Package telemetry provides logging and OpenTelemetry instrumentation for
// Warden.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/warden/internal/config"
)

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	regionCallDuration metric.Float64Histogram
	regionCallErrors   metric.Int64Counter
	checkDuration      metric.Float64Histogram
	checkErrors        metric.Int64Counter
	findings           metric.Int64Counter
	auditDuration      metric.Float64Histogram
}

// NewProvider creates a new telemetry provider. Extra readers, such as a
// Prometheus exporter, are attached to the meter provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig, readers ...sdkmetric.Reader) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res, readers); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("warden")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, readers []sdkmetric.Reader) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("warden")

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.regionCallDuration, err = p.meter.Float64Histogram(
		"warden_region_call_duration_seconds",
		metric.WithDescription("Duration of per-region discovery calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create region_call_duration: %w", err)
	}

	p.regionCallErrors, err = p.meter.Int64Counter(
		"warden_region_call_errors_total",
		metric.WithDescription("Total failed per-region discovery calls"),
	)
	if err != nil {
		return fmt.Errorf("create region_call_errors: %w", err)
	}

	p.checkDuration, err = p.meter.Float64Histogram(
		"warden_check_duration_seconds",
		metric.WithDescription("Duration of check executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create check_duration: %w", err)
	}

	p.checkErrors, err = p.meter.Int64Counter(
		"warden_check_errors_total",
		metric.WithDescription("Total failed check executions"),
	)
	if err != nil {
		return fmt.Errorf("create check_errors: %w", err)
	}

	p.findings, err = p.meter.Int64Counter(
		"warden_findings_total",
		metric.WithDescription("Total findings by check, severity and status"),
	)
	if err != nil {
		return fmt.Errorf("create findings: %w", err)
	}

	p.auditDuration, err = p.meter.Float64Histogram(
		"warden_audit_duration_seconds",
		metric.WithDescription("Duration of complete audits"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create audit_duration: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name)
}

// RecordRegionCall records one per-region call.
func (p *Provider) RecordRegionCall(ctx context.Context, operation, region string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("region", region),
	)
	p.regionCallDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		p.regionCallErrors.Add(ctx, 1, attrs)
	}
}

// RecordCheck records one check execution.
func (p *Provider) RecordCheck(ctx context.Context, checkID string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("check", checkID))
	p.checkDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		p.checkErrors.Add(ctx, 1, attrs)
	}
}

// RecordFindings adds n findings with the given labels.
func (p *Provider) RecordFindings(ctx context.Context, checkID, severity, status string, n int) {
	p.findings.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("check", checkID),
		attribute.String("severity", severity),
		attribute.String("status", status),
	))
}

// RecordAudit records a completed audit.
func (p *Provider) RecordAudit(ctx context.Context, account string, d time.Duration, degraded bool) {
	p.auditDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("account", account),
		attribute.Bool("degraded", degraded),
	))
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
