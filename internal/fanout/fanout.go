// Package fanout runs one operation per region on a bounded worker pool and
// isolates failures per region.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxWorkers bounds concurrent regions when Options.MaxWorkers is unset.
const DefaultMaxWorkers = 8

// Op is the per-region unit of work.
type Op func(ctx context.Context, region string) error

// Observer receives the outcome of each region call.
type Observer interface {
	RecordRegionCall(ctx context.Context, operation, region string, d time.Duration, err error)
}

// Options configure a Runner.
type Options struct {
	MaxWorkers int
	// CallTimeout bounds each region call. Zero disables the timeout.
	CallTimeout time.Duration
	Observer    Observer
}

// RegionError is a failure of one operation in one region.
type RegionError struct {
	Region    string
	Operation string
	Err       error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("%s in %s: %v", e.Operation, e.Region, e.Err)
}

func (e *RegionError) Unwrap() error { return e.Err }

// Report summarizes one fan-out pass.
type Report struct {
	Operation string
	Succeeded []string
	Failed    []*RegionError
	Duration  time.Duration
}

// Degraded reports whether any region failed.
func (r Report) Degraded() bool { return len(r.Failed) > 0 }

// Err joins every region failure, nil when all regions succeeded.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Runner executes region fan-outs.
type Runner struct {
	opts   Options
	tracer trace.Tracer
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	return &Runner{
		opts:   opts,
		tracer: otel.Tracer("github.com/yairfalse/warden/internal/fanout"),
	}
}

// Run executes op once per region and blocks until every region finished.
// A failing or panicking region is logged and recorded in the report; the
// other regions are unaffected. Succeeded and Failed follow region order.
func (r *Runner) Run(ctx context.Context, operation string, regions []string, op Op) Report {
	start := time.Now()
	results := make([]error, len(regions))

	p := pool.New().WithMaxGoroutines(r.opts.MaxWorkers)
	for i, region := range regions {
		p.Go(func() {
			results[i] = r.call(ctx, operation, region, op)
		})
	}
	p.Wait()

	report := Report{Operation: operation}
	for i, region := range regions {
		if results[i] == nil {
			report.Succeeded = append(report.Succeeded, region)
			continue
		}
		report.Failed = append(report.Failed, &RegionError{
			Region:    region,
			Operation: operation,
			Err:       results[i],
		})
	}
	report.Duration = time.Since(start)

	log.Debug().
		Str("operation", operation).
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("fan-out complete")

	return report
}

func (r *Runner) call(ctx context.Context, operation, region string, op Op) (err error) {
	ctx, span := r.tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String("region", region),
	))
	defer span.End()

	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	var pc panics.Catcher
	pc.Try(func() {
		err = op(ctx, region)
	})
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("panic: %v", rec.Value)
	}

	if r.opts.Observer != nil {
		r.opts.Observer.RecordRegionCall(ctx, operation, region, time.Since(start), err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().
			Err(err).
			Str("operation", operation).
			Str("region", region).
			Msg("region call failed")
	}
	return err
}
