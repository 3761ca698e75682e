package emitter

import (
	"sync"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/report"
)

// DriftType classifies a change in finding status between audits.
type DriftType string

const (
	// DriftOpened is a resource that newly fails a check.
	DriftOpened DriftType = "opened"
	// DriftResolved is a previously failing resource that passes or is gone.
	DriftResolved DriftType = "resolved"
)

// Drift is one finding whose failing state changed.
type Drift struct {
	Type    DriftType
	Finding check.Finding
}

// Unobserved is what an audit could not see: regions with a failed
// discovery call and checks that did not complete. Findings under either are
// neither resolved nor dropped from the baseline.
type Unobserved struct {
	Regions map[string]bool
	Checks  map[string]bool
}

// UnobservedIn collects the degraded regions and failed checks of rep.
func UnobservedIn(rep *report.Report) Unobserved {
	u := Unobserved{Regions: make(map[string]bool), Checks: make(map[string]bool)}
	for _, d := range rep.Degraded {
		u.Regions[d.Region] = true
	}
	for _, c := range rep.CheckFailures {
		u.Checks[c.CheckID] = true
	}
	return u
}

func (u Unobserved) covers(f check.Finding) bool {
	return u.Regions[f.Region] || u.Checks[f.CheckID]
}

// DriftTracker tracks failing findings between audits and detects changes.
type DriftTracker struct {
	mu          sync.RWMutex
	previous    map[string]check.Finding
	initialized bool
}

// NewDriftTracker creates a new drift tracker.
func NewDriftTracker() *DriftTracker {
	return &DriftTracker{
		previous: make(map[string]check.Finding),
	}
}

// FindingKey identifies a finding across audits.
func FindingKey(f check.Finding) string {
	return f.CheckID + "|" + f.ResourceARN
}

// ComputeDrift compares current findings against the previous baseline.
// Returns nil on the first audit, an empty slice when nothing changed.
// Baseline failures with no current finding under an unobserved region or
// check are not reported as resolved.
func (d *DriftTracker) ComputeDrift(current []check.Finding, unobserved Unobserved) []Drift {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil
	}

	failing := indexFailing(current)
	seen := indexKeys(current)
	drift := make([]Drift, 0)
	for _, f := range current {
		if f.Status != check.StatusFail {
			continue
		}
		if _, ok := d.previous[FindingKey(f)]; !ok {
			drift = append(drift, Drift{Type: DriftOpened, Finding: f})
		}
	}
	for key, prev := range d.previous {
		if _, ok := failing[key]; ok {
			continue
		}
		if _, ok := seen[key]; !ok && unobserved.covers(prev) {
			continue
		}
		drift = append(drift, Drift{Type: DriftResolved, Finding: prev})
	}
	return drift
}

// Update stores the failing findings of current as the new baseline. Baseline
// failures under an unobserved region or check are carried forward.
func (d *DriftTracker) Update(current []check.Finding, unobserved Unobserved) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := indexFailing(current)
	seen := indexKeys(current)
	for key, prev := range d.previous {
		if _, ok := seen[key]; !ok && unobserved.covers(prev) {
			next[key] = prev
		}
	}
	d.previous = next
	d.initialized = true
}

func indexKeys(findings []check.Finding) map[string]struct{} {
	m := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		m[FindingKey(f)] = struct{}{}
	}
	return m
}

func indexFailing(findings []check.Finding) map[string]check.Finding {
	m := make(map[string]check.Finding)
	for _, f := range findings {
		if f.Status == check.StatusFail {
			m[FindingKey(f)] = f
		}
	}
	return m
}
