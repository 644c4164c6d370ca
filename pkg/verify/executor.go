package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cgast/entitycheck/pkg/experiment"
)

// Executor runs the verification checks of an experiment against the
// telemetry backend and aggregates the outcomes into a Report.
type Executor struct {
	backend      Querier
	handlers     map[string]CheckHandler
	logger       *slog.Logger
	concurrency  int
	checkTimeout time.Duration
	now          func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithConcurrency bounds the number of checks in flight at once. 1 gives
// strictly sequential execution.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithCheckTimeout bounds each check's backend call. A check that exceeds
// it is recorded as failed with a timeout message; the run continues.
func WithCheckTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.checkTimeout = d
		}
	}
}

// WithHandler registers or replaces the handler for a check type.
func WithHandler(checkType string, h CheckHandler) Option {
	return func(e *Executor) {
		e.handlers[checkType] = h
	}
}

// NewExecutor creates an Executor with the built-in check handlers.
func NewExecutor(backend Querier, opts ...Option) *Executor {
	e := &Executor{
		backend:      backend,
		handlers:     defaultHandlers(),
		logger:       slog.Default(),
		concurrency:  4,
		checkTimeout: 30 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies the experiment's modifications, then evaluates every
// declared check. Checks run on a bounded pool; one check's failure (a
// transport error, a backend rejection, a timeout) is recorded as a failed
// result and never aborts the remaining checks. Results keep declaration
// order regardless of completion order. The input definition is not
// mutated.
//
// The returned error is non-nil only when the modifications cannot be
// applied; no check has executed in that case.
func (e *Executor) Execute(ctx context.Context, def experiment.Definition) (Report, error) {
	// Modifications target a copy of the payload so the caller's
	// definition stays pristine.
	if len(def.Modifications) > 0 {
		payload := copyMap(def.Payload)
		if err := experiment.ApplyModifications(payload, def.Modifications); err != nil {
			return Report{}, fmt.Errorf("apply modifications: %w", err)
		}
		e.logger.Debug("modifications applied",
			"experiment", def.Name, "count", len(def.Modifications))
	}

	checks := def.Verification.Checks
	results := make([]CheckResult, len(checks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.concurrency)
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check experiment.Check) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.runCheck(ctx, check)
		}(i, check)
	}
	wg.Wait()

	report := Report{
		Experiment:   def.Name,
		ExperimentID: def.Metadata.ID,
		Details:      results,
		Timestamp:    e.now().UTC(),
	}
	for _, r := range results {
		report.Summary.Total++
		if r.Passed {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
		}
	}

	e.logger.Info("verification complete",
		"experiment", def.Name,
		"passed", report.Summary.Passed,
		"failed", report.Summary.Failed)
	return report, nil
}

func (e *Executor) runCheck(ctx context.Context, check experiment.Check) CheckResult {
	handler := e.handlers[check.Type]
	if handler == nil {
		return failedResult(check, fmt.Sprintf("no handler registered for check type %q", check.Type))
	}

	cctx, cancel := context.WithTimeout(ctx, e.checkTimeout)
	defer cancel()

	result := handler(cctx, e.backend, check)
	if !result.Passed && cctx.Err() != nil {
		result.Message = fmt.Sprintf("check timed out after %s: %s", e.checkTimeout, result.Message)
	}
	e.logger.Debug("check evaluated", "type", check.Type, "passed", result.Passed)
	return result
}

// copyMap deep-copies a decoded document tree of maps, slices and scalars.
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return t
	}
}
