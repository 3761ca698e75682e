package check

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/yairfalse/warden/internal/inventory"
)

var (
	// ErrUnknownCheck is returned for an id that was never registered.
	ErrUnknownCheck = errors.New("unknown check")
	// ErrNotSealed is returned when the inventory is still being populated.
	ErrNotSealed = errors.New("inventory not sealed")
)

// ExecutionError is a check that failed or panicked. Only that check's
// findings are lost.
type ExecutionError struct {
	CheckID string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("check %s: %v", e.CheckID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Observer receives the outcome of each check execution.
type Observer interface {
	RecordCheck(ctx context.Context, checkID string, d time.Duration, err error)
}

// Runner is the dispatch table of checks keyed by id. Checks keep their
// registration order.
type Runner struct {
	checks      []Check
	index       map[string]Check
	concurrency int
	observer    Observer
}

// NewRunner creates an empty runner. concurrency bounds parallel checks in
// RunAll; zero or less means one per check.
func NewRunner(concurrency int) *Runner {
	return &Runner{
		index:       make(map[string]Check),
		concurrency: concurrency,
	}
}

// SetObserver attaches an observer notified after every execution.
func (r *Runner) SetObserver(o Observer) {
	r.observer = o
}

// Register adds c. It panics on an empty or duplicate id.
func (r *Runner) Register(c Check) {
	id := c.Metadata().ID
	if id == "" {
		panic("check registered without id")
	}
	if _, exists := r.index[id]; exists {
		panic(fmt.Sprintf("duplicate check ID: %q", id))
	}
	r.checks = append(r.checks, c)
	r.index[id] = c
}

// Get returns the check registered under id.
func (r *Runner) Get(id string) (Check, bool) {
	c, ok := r.index[id]
	return c, ok
}

// Checks returns every check in registration order.
func (r *Runner) Checks() []Check {
	return append([]Check(nil), r.checks...)
}

// IDs returns every check id in registration order.
func (r *Runner) IDs() []string {
	ids := make([]string, len(r.checks))
	for i, c := range r.checks {
		ids[i] = c.Metadata().ID
	}
	return ids
}

// Execute runs one check. A returned error or a panic inside the check is
// reported as an *ExecutionError.
func (r *Runner) Execute(ctx context.Context, id string, inv *inventory.Inventory) ([]Finding, error) {
	c, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	if !inv.Sealed() {
		return nil, ErrNotSealed
	}

	start := time.Now()
	var (
		findings []Finding
		err      error
		pc       panics.Catcher
	)
	pc.Try(func() {
		findings, err = c.Execute(ctx, inv)
	})
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("panic: %v", rec.Value)
	}
	if r.observer != nil {
		r.observer.RecordCheck(ctx, id, time.Since(start), err)
	}
	if err != nil {
		log.Error().Err(err).Str("check", id).Msg("check execution failed")
		return nil, &ExecutionError{CheckID: id, Err: err}
	}
	if findings == nil {
		findings = []Finding{}
	}

	log.Debug().
		Str("check", id).
		Int("findings", len(findings)).
		Dur("duration", time.Since(start)).
		Msg("check complete")
	return findings, nil
}

// Result is the outcome of RunAll.
type Result struct {
	Findings []Finding
	Failures []*ExecutionError
}

// RunAll executes the given checks concurrently, all registered checks when
// ids is empty. Findings are concatenated in the order of ids, so the result
// equals a sequential run.
func (r *Runner) RunAll(ctx context.Context, inv *inventory.Inventory, ids []string) (Result, error) {
	if !inv.Sealed() {
		return Result{}, ErrNotSealed
	}
	if len(ids) == 0 {
		ids = r.IDs()
	}
	for _, id := range ids {
		if _, ok := r.index[id]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownCheck, id)
		}
	}

	perCheck := make([][]Finding, len(ids))
	errs := make([]error, len(ids))

	p := pool.New()
	if r.concurrency > 0 {
		p = p.WithMaxGoroutines(r.concurrency)
	}
	for i, id := range ids {
		p.Go(func() {
			perCheck[i], errs[i] = r.Execute(ctx, id, inv)
		})
	}
	p.Wait()

	var res Result
	for i := range ids {
		if errs[i] != nil {
			var execErr *ExecutionError
			if !errors.As(errs[i], &execErr) {
				execErr = &ExecutionError{CheckID: ids[i], Err: errs[i]}
			}
			res.Failures = append(res.Failures, execErr)
			continue
		}
		res.Findings = append(res.Findings, perCheck[i]...)
	}
	if res.Findings == nil {
		res.Findings = []Finding{}
	}
	return res, nil
}
