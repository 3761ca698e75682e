// Package emitter defines the output backends for audit reports.
package emitter

import (
	"context"

	"github.com/yairfalse/warden/internal/report"
)

// Emitter outputs audit reports to a backend.
type Emitter interface {
	// Emit sends a completed report to the backend.
	Emit(ctx context.Context, rep *report.Report) error

	// Close cleans up resources.
	Close() error
}

// MultiEmitter fans out to multiple emitters.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Emit sends to all emitters, returns first error.
func (m *MultiEmitter) Emit(ctx context.Context, rep *report.Report) error {
	for _, e := range m.emitters {
		if err := e.Emit(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all emitters.
func (m *MultiEmitter) Close() error {
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			return err
		}
	}
	return nil
}
