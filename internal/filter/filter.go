// Package filter selects the resources and checks an audit covers.
package filter

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter matches ARNs against allow-list glob patterns.
// An empty filter allows everything.
type Filter struct {
	patterns []string
	globs    []glob.Glob
}

// New compiles the given ARN patterns. Patterns use glob syntax with ':' and
// '/' as separators, so "arn:aws:sqs:*:*:orders-*" matches one segment each.
func New(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		g, err := glob.Compile(p, ':', '/')
		if err != nil {
			return nil, fmt.Errorf("compile resource pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, p)
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// Allows returns true if the ARN matches any pattern or no patterns are set.
func (f *Filter) Allows(arn string) bool {
	if f == nil || len(f.globs) == 0 {
		return true
	}
	for _, g := range f.globs {
		if g.Match(arn) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.patterns...)
}

// IsEmpty returns true if no patterns are configured.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.globs) == 0
}

// CheckSelector picks check ids by include and exclude globs.
type CheckSelector struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewCheckSelector compiles include and exclude patterns. An empty include
// list selects every check not excluded.
func NewCheckSelector(include, exclude []string) (*CheckSelector, error) {
	s := &CheckSelector{}
	for _, p := range include {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile check pattern %q: %w", p, err)
		}
		s.include = append(s.include, g)
	}
	for _, p := range exclude {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile check pattern %q: %w", p, err)
		}
		s.exclude = append(s.exclude, g)
	}
	return s, nil
}

// Selects returns true if the check id should run.
func (s *CheckSelector) Selects(id string) bool {
	if s == nil {
		return true
	}
	for _, g := range s.exclude {
		if g.Match(id) {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, g := range s.include {
		if g.Match(id) {
			return true
		}
	}
	return false
}
