// Package report holds the result of one complete audit.
package report

import (
	"time"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/fanout"
)

// Report is the outcome of one audit run.
type Report struct {
	RunID         string          `json:"run_id"`
	AccountID     string          `json:"account_id"`
	Partition     string          `json:"partition"`
	Regions       []string        `json:"regions"`
	Resources     []string        `json:"resource_filter,omitempty"` // ARN patterns the audit was limited to
	StartedAt     time.Time       `json:"started_at"`
	Duration      time.Duration   `json:"duration_ns"`
	Findings      []check.Finding `json:"findings"`
	Summary       Summary         `json:"summary"`
	Degraded      []RegionFailure `json:"degraded,omitempty"`
	CheckFailures []CheckFailure  `json:"check_failures,omitempty"`
}

// Summary counts findings by status and failing findings by severity.
type Summary struct {
	Total      int                    `json:"total"`
	Passed     int                    `json:"passed"`
	Failed     int                    `json:"failed"`
	BySeverity map[check.Severity]int `json:"failed_by_severity"`
}

// RegionFailure is a discovery call that failed in one region.
type RegionFailure struct {
	Operation string `json:"operation"`
	Region    string `json:"region"`
	Error     string `json:"error"`
}

// CheckFailure is a check that could not complete.
type CheckFailure struct {
	CheckID string `json:"check_id"`
	Error   string `json:"error"`
}

// Summarize counts findings.
func Summarize(findings []check.Finding) Summary {
	s := Summary{Total: len(findings), BySeverity: make(map[check.Severity]int)}
	for _, f := range findings {
		switch f.Status {
		case check.StatusPass:
			s.Passed++
		case check.StatusFail:
			s.Failed++
			s.BySeverity[f.Severity]++
		}
	}
	return s
}

// RegionFailures flattens the failed regions of every fan-out.
func RegionFailures(reports []fanout.Report) []RegionFailure {
	var out []RegionFailure
	for _, r := range reports {
		for _, f := range r.Failed {
			out = append(out, RegionFailure{
				Operation: f.Operation,
				Region:    f.Region,
				Error:     f.Err.Error(),
			})
		}
	}
	return out
}

// CheckFailures renders check execution errors.
func CheckFailures(errs []*check.ExecutionError) []CheckFailure {
	var out []CheckFailure
	for _, e := range errs {
		out = append(out, CheckFailure{CheckID: e.CheckID, Error: e.Err.Error()})
	}
	return out
}

// IsDegraded reports whether any region or check failed.
func (r *Report) IsDegraded() bool {
	return len(r.Degraded) > 0 || len(r.CheckFailures) > 0
}

// Failing returns the FAIL findings.
func (r *Report) Failing() []check.Finding {
	var out []check.Finding
	for _, f := range r.Findings {
		if f.Status == check.StatusFail {
			out = append(out, f)
		}
	}
	return out
}
