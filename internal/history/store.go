// Package history keeps an append-only record of verification runs so
// pass rates can be compared across runs and inspected from the CLI.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cgast/entitycheck/pkg/verify"
)

const runsBucket = "runs"

// RunInfo is the persisted summary of one verification run.
type RunInfo struct {
	ExperimentID string    `json:"experiment_id"`
	Experiment   string    `json:"experiment"`
	Total        int       `json:"total"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	Timestamp    time.Time `json:"timestamp"`
	ReportPath   string    `json:"report_path,omitempty"`
}

// Store is a bbolt-backed run-history store.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Record persists the summary of a completed run. The experiment ID is
// unique per run (it embeds the parse-time millisecond timestamp), so
// records are never overwritten.
func (s *Store) Record(report verify.Report, reportPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := RunInfo{
		ExperimentID: report.ExperimentID,
		Experiment:   report.Experiment,
		Total:        report.Summary.Total,
		Passed:       report.Summary.Passed,
		Failed:       report.Summary.Failed,
		Timestamp:    report.Timestamp,
		ReportPath:   reportPath,
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return tx.Bucket([]byte(runsBucket)).Put([]byte(info.ExperimentID), data)
	})
}

// Get returns the recorded run with the given experiment ID.
func (s *Store) Get(experimentID string) (RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var info RunInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(experimentID))
		if data == nil {
			return fmt.Errorf("run not found: %s", experimentID)
		}
		return json.Unmarshal(data, &info)
	})
	return info, err
}

// List returns all recorded runs, oldest first.
func (s *Store) List() ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []RunInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var info RunInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", string(k), err)
			}
			runs = append(runs, info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
