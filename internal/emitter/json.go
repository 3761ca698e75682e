package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yairfalse/warden/internal/report"
)

// JSONEmitter writes each report as one indented JSON document.
type JSONEmitter struct {
	w      io.Writer
	closer io.Closer
}

// NewJSONEmitter writes reports to w. The caller owns w.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{w: w}
}

// NewJSONFileEmitter writes reports to the file at path, truncating it.
func NewJSONFileEmitter(path string) (*JSONEmitter, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &JSONEmitter{w: f, closer: f}, nil
}

// Emit writes rep.
func (e *JSONEmitter) Emit(_ context.Context, rep *report.Report) error {
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Close closes the output file, if the emitter opened one.
func (e *JSONEmitter) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}
