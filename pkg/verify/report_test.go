package verify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		Experiment:   "lag-check",
		ExperimentID: "lag-check-1756130000000",
		Summary:      Summary{Total: 2, Passed: 1, Failed: 1},
		Details: []CheckResult{
			{Type: "entity-exists", Passed: true},
			{Type: "metric-threshold", Passed: false, Message: "value 142 does not satisfy <= 100"},
		},
		Timestamp: time.Date(2026, 8, 25, 14, 30, 5, 123e6, time.UTC),
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results", "nested")
	path, err := Save(sampleReport(), dir, "lag-check")
	require.NoError(t, err)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "lag-check-2026-08-25T14-30-05-123Z-"), name)
	assert.True(t, strings.HasSuffix(name, ".json"), name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, sampleReport().Summary, loaded.Summary)
	assert.Len(t, loaded.Details, 2)
}

func TestSaveNeverCollides(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport() // identical timestamp both times

	a, err := Save(report, dir, "lag-check")
	require.NoError(t, err)
	b, err := Save(report, dir, "lag-check")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two saves in the same instant must not collide")
	for _, p := range []string{a, b} {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestSummaryLines(t *testing.T) {
	lines := sampleReport().SummaryLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "lag-check: 1/2 checks passed", lines[0])
	assert.Contains(t, lines[1], "FAIL metric-threshold")
	assert.Contains(t, lines[1], "value 142")

	passing := sampleReport()
	passing.Summary = Summary{Total: 1, Passed: 1}
	passing.Details = []CheckResult{{Type: "entity-exists", Passed: true}}
	assert.Len(t, passing.SummaryLines(), 1)
	assert.True(t, passing.OK())
}
