package emitter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/warden/internal/report"
)

// RunSaver persists reports. Implemented by store.Store.
type RunSaver interface {
	SaveRun(rep *report.Report) (uint64, error)
	Compact(keep int) (int, error)
	Close() error
}

// HistoryEmitter persists every report. It owns the saver.
type HistoryEmitter struct {
	saver RunSaver
	keep  int
}

// NewHistoryEmitter creates a history emitter backed by saver. When keep is
// positive only the newest keep runs are retained.
func NewHistoryEmitter(saver RunSaver, keep int) *HistoryEmitter {
	return &HistoryEmitter{saver: saver, keep: keep}
}

// Emit saves rep, then drops runs beyond the retention limit.
func (e *HistoryEmitter) Emit(_ context.Context, rep *report.Report) error {
	rev, err := e.saver.SaveRun(rep)
	if err != nil {
		return err
	}
	log.Debug().
		Str("run_id", rep.RunID).
		Uint64("revision", rev).
		Msg("audit saved")

	if e.keep <= 0 {
		return nil
	}
	deleted, err := e.saver.Compact(e.keep)
	if err != nil {
		return fmt.Errorf("compact history: %w", err)
	}
	if deleted > 0 {
		log.Debug().
			Int("deleted", deleted).
			Int("keep", e.keep).
			Msg("history compacted")
	}
	return nil
}

// Close closes the saver.
func (e *HistoryEmitter) Close() error {
	return e.saver.Close()
}
