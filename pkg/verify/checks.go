package verify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cgast/entitycheck/pkg/experiment"
	"github.com/cgast/entitycheck/pkg/nrdb"
)

// Querier is the telemetry backend contract the executor needs: one NRQL
// query in, result rows out. *nrdb.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, nrql string) ([]nrdb.Row, error)
}

// CheckResult records the outcome of a single verification check.
type CheckResult struct {
	Type     string `json:"type"`
	Passed   bool   `json:"passed"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CheckHandler evaluates one check against the backend.
type CheckHandler func(ctx context.Context, backend Querier, check experiment.Check) CheckResult

// defaultHandlers maps check type names to their implementations. The
// names line up with experiment.DefaultCheckTypes.
func defaultHandlers() map[string]CheckHandler {
	return map[string]CheckHandler{
		"entity-exists":     checkExists,
		"event-exists":      checkExists,
		"count-comparison":  checkCountComparison,
		"metric-threshold":  checkMetricThreshold,
		"attribute-present": checkAttributePresent,
	}
}

// checkNRQL resolves the query string for a check: an explicit query wins,
// otherwise one is built from the declared event type.
func checkNRQL(check experiment.Check) (string, error) {
	if check.Query != "" {
		return check.Query, nil
	}
	if check.EventType != "" {
		return fmt.Sprintf("SELECT count(*) FROM %s SINCE 30 minutes ago", check.EventType), nil
	}
	return "", fmt.Errorf("check has neither query nor event_type")
}

// checkExists passes when the query reports at least one matching record.
func checkExists(ctx context.Context, backend Querier, check experiment.Check) CheckResult {
	nrql, err := checkNRQL(check)
	if err != nil {
		return failedResult(check, err.Error())
	}
	rows, err := backend.Query(ctx, nrql)
	if err != nil {
		return failedResult(check, err.Error())
	}

	count := countFromRows(rows)
	passed := count > 0
	msg := check.Message
	if !passed && msg == "" {
		msg = "no matching records"
	}
	return CheckResult{
		Type:     check.Type,
		Passed:   passed,
		Expected: "count > 0",
		Actual:   count,
		Message:  msg,
	}
}

// checkCountComparison compares the result count against an explicit bound.
func checkCountComparison(ctx context.Context, backend Querier, check experiment.Check) CheckResult {
	expected, err := toFloat(check.Expected)
	if err != nil {
		return failedResult(check, fmt.Sprintf("invalid expected value: %v", check.Expected))
	}
	op := check.Operator
	if op == "" {
		op = "=="
	}

	nrql, err := checkNRQL(check)
	if err != nil {
		return failedResult(check, err.Error())
	}
	rows, err := backend.Query(ctx, nrql)
	if err != nil {
		return failedResult(check, err.Error())
	}

	actual := countFromRows(rows)
	passed, err := compare(actual, op, expected)
	if err != nil {
		return failedResult(check, err.Error())
	}
	msg := check.Message
	if !passed && msg == "" {
		msg = fmt.Sprintf("count %v does not satisfy %s %v", actual, op, expected)
	}
	return CheckResult{
		Type:     check.Type,
		Passed:   passed,
		Expected: fmt.Sprintf("count %s %v", op, expected),
		Actual:   actual,
		Message:  msg,
	}
}

// checkMetricThreshold compares a numeric result field against a bound.
func checkMetricThreshold(ctx context.Context, backend Querier, check experiment.Check) CheckResult {
	threshold, err := toFloat(check.Threshold)
	if err != nil {
		return failedResult(check, fmt.Sprintf("invalid threshold: %v", check.Threshold))
	}
	op := check.Operator
	if op == "" {
		op = ">="
	}

	nrql, err := checkNRQL(check)
	if err != nil {
		return failedResult(check, err.Error())
	}
	rows, err := backend.Query(ctx, nrql)
	if err != nil {
		return failedResult(check, err.Error())
	}
	if len(rows) == 0 {
		return failedResult(check, "query returned no rows")
	}

	actual, err := numericField(rows[0], check.Field)
	if err != nil {
		return failedResult(check, err.Error())
	}
	passed, err := compare(actual, op, threshold)
	if err != nil {
		return failedResult(check, err.Error())
	}
	msg := check.Message
	if !passed && msg == "" {
		msg = fmt.Sprintf("value %v does not satisfy %s %v", actual, op, threshold)
	}
	return CheckResult{
		Type:     check.Type,
		Passed:   passed,
		Expected: fmt.Sprintf("%s %v", op, threshold),
		Actual:   actual,
		Message:  msg,
	}
}

// checkAttributePresent passes when at least one row carries a non-null
// value for the named attribute.
func checkAttributePresent(ctx context.Context, backend Querier, check experiment.Check) CheckResult {
	if check.Attribute == "" {
		return failedResult(check, "attribute is required")
	}
	nrql, err := checkNRQL(check)
	if err != nil {
		return failedResult(check, err.Error())
	}
	rows, err := backend.Query(ctx, nrql)
	if err != nil {
		return failedResult(check, err.Error())
	}

	for _, row := range rows {
		if v, ok := row[check.Attribute]; ok && v != nil {
			return CheckResult{
				Type:     check.Type,
				Passed:   true,
				Expected: fmt.Sprintf("%s present", check.Attribute),
				Actual:   v,
				Message:  check.Message,
			}
		}
	}
	msg := check.Message
	if msg == "" {
		msg = fmt.Sprintf("attribute %q not present in any row", check.Attribute)
	}
	return CheckResult{
		Type:     check.Type,
		Passed:   false,
		Expected: fmt.Sprintf("%s present", check.Attribute),
		Actual:   nil,
		Message:  msg,
	}
}

func failedResult(check experiment.Check, msg string) CheckResult {
	return CheckResult{
		Type:    check.Type,
		Passed:  false,
		Message: msg,
	}
}

// countFromRows extracts the count of an aggregate query result: the
// "count"-named field of the first row when present, otherwise the number
// of rows.
func countFromRows(rows []nrdb.Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	for key, v := range rows[0] {
		if strings.EqualFold(key, "count") || strings.HasPrefix(strings.ToLower(key), "count") {
			if f, err := toFloat(v); err == nil {
				return f
			}
		}
	}
	return float64(len(rows))
}

// numericField extracts the named field of a row as a float, or the first
// numeric value when no field is named.
func numericField(row nrdb.Row, field string) (float64, error) {
	if field != "" {
		v, ok := row[field]
		if !ok {
			return 0, fmt.Errorf("field %q not in result row", field)
		}
		f, err := toFloat(v)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", field, err)
		}
		return f, nil
	}
	for _, v := range row {
		if f, err := toFloat(v); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("no numeric value in result row")
}

// compare applies a comparison operator to two numbers.
func compare(actual float64, op string, bound float64) (bool, error) {
	switch op {
	case "==", "=":
		return actual == bound, nil
	case "!=":
		return actual != bound, nil
	case ">":
		return actual > bound, nil
	case ">=":
		return actual >= bound, nil
	case "<":
		return actual < bound, nil
	case "<=":
		return actual <= bound, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// toFloat converts the numeric types a decoded document can carry.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}
