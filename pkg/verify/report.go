package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Summary counts check outcomes for one run.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Report is the aggregated outcome of one verification run. It is created
// once per Execute call and never modified afterwards.
type Report struct {
	Experiment   string        `json:"experiment"`
	ExperimentID string        `json:"experiment_id"`
	Summary      Summary       `json:"summary"`
	Details      []CheckResult `json:"details"`
	Timestamp    time.Time     `json:"timestamp"`
}

// OK reports whether every check passed. CLI exit status derives from it.
func (r Report) OK() bool {
	return r.Summary.Failed == 0
}

// SummaryLines renders the human-readable outcome: a passed/total line
// plus, on any failure, one line per failing check.
func (r Report) SummaryLines() []string {
	lines := []string{
		fmt.Sprintf("%s: %d/%d checks passed", r.Experiment, r.Summary.Passed, r.Summary.Total),
	}
	for _, d := range r.Details {
		if !d.Passed {
			lines = append(lines, fmt.Sprintf("  FAIL %s: %s", d.Type, d.Message))
		}
	}
	return lines
}

// Save serializes the report as pretty-printed JSON under dir, creating
// the directory if needed. The filename carries the report timestamp at
// millisecond resolution plus a random suffix, so two reports saved within
// the same instant never overwrite one another. Returns the written path.
func Save(r Report, dir, prefix string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	token := strings.NewReplacer(":", "-", ".", "-").
		Replace(ts.UTC().Format("2006-01-02T15:04:05.000Z"))
	suffix := uuid.NewString()[:8]
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.json", prefix, token, suffix))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
