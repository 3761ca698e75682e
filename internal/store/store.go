// Package store persists audit history in a bbolt database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/report"
)

// Bucket names in bbolt
var (
	bucketRuns   = []byte("runs")
	bucketLatest = []byte("latest")
)

// ErrNotFound is returned when no history exists for a key.
var ErrNotFound = errors.New("not found")

// Run is the stored summary of one audit.
type Run struct {
	Revision  uint64         `json:"revision"`
	RunID     string         `json:"run_id"`
	AccountID string         `json:"account_id"`
	Regions   []string       `json:"regions"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Summary   report.Summary `json:"summary"`
	Degraded  bool           `json:"degraded"`
}

// Status is the last recorded outcome of one check against one resource.
type Status struct {
	Status   check.Status `json:"status"`
	RunID    string       `json:"run_id"`
	Revision uint64       `json:"revision"`
	SeenAt   time.Time    `json:"seen_at"`
}

// Store is a bbolt backed audit history.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketLatest} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records rep and updates the latest status of every finding in one
// transaction. It returns the revision assigned to the run.
func (s *Store) SaveRun(rep *report.Report) (uint64, error) {
	var rev uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		var err error
		rev, err = runs.NextSequence()
		if err != nil {
			return err
		}

		run := Run{
			Revision:  rev,
			RunID:     rep.RunID,
			AccountID: rep.AccountID,
			Regions:   rep.Regions,
			StartedAt: rep.StartedAt,
			Duration:  rep.Duration,
			Summary:   rep.Summary,
			Degraded:  rep.IsDegraded(),
		}
		value, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if err := runs.Put(revisionKey(rev), value); err != nil {
			return err
		}

		latest := tx.Bucket(bucketLatest)
		for _, f := range rep.Findings {
			value, err := json.Marshal(Status{
				Status:   f.Status,
				RunID:    rep.RunID,
				Revision: rev,
				SeenAt:   rep.StartedAt,
			})
			if err != nil {
				return err
			}
			if err := latest.Put(statusKey(f.CheckID, f.ResourceARN), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save run %s: %w", rep.RunID, err)
	}
	return rev, nil
}

// Previous returns the last recorded status of checkID against arn.
func (s *Store) Previous(checkID, arn string) (Status, error) {
	var st Status
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLatest).Get(statusKey(checkID, arn))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &st)
	})
	return st, err
}

// Runs returns up to limit stored runs, newest first. A limit of zero returns
// every run.
func (s *Store) Runs(limit int) ([]Run, error) {
	var out []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			out = append(out, run)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Compact deletes all but the newest keep runs. Latest statuses are kept.
func (s *Store) Compact(keep int) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		if len(keys) <= keep {
			return nil
		}
		for _, k := range keys[:len(keys)-keep] {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// revisionKey zero pads so keys sort numerically.
func revisionKey(rev uint64) []byte {
	return []byte(fmt.Sprintf("%020d", rev))
}

func statusKey(checkID, arn string) []byte {
	return []byte(checkID + "|" + arn)
}
