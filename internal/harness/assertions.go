package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/roach88/rowgate/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.Op, event.Table, event.Args)
		}
	}

	return buf.String()
}

// selectRows queries a table filtered by column equality.
// Identifiers are validated because they are interpolated into SQL.
func selectRows(ctx context.Context, st *store.Store, tableName string, where map[string]any) ([]map[string]any, error) {
	if !validIdentifier.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name %q: must match pattern %s", tableName, validIdentifier.String())
	}
	for col := range where {
		if !validIdentifier.MatchString(col) {
			return nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", col, validIdentifier.String())
		}
	}

	sb := st.Builder().Select("*").From(tableName)
	if len(where) > 0 {
		sb = sb.Where(squirrel.Eq(where))
	}
	return st.Select(ctx, sb)
}

// assertFinalState checks that exactly one row matches and contains the
// expected values.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := selectRows(ctx, st, assertion.Table, assertion.Where)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(rows)),
		}
	}

	if msg := matchRow(rows[0], assertion.Expect); msg != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s to match %v", assertion.Table, whereDesc, assertion.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertRowCount checks the number of rows matching the filter.
func assertRowCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := selectRows(ctx, st, assertion.Table, assertion.Where)
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if int64(len(rows)) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d row(s) in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d row(s)", len(rows)),
		}
	}
	return nil
}

// assertTraceCount checks how often an operation appears in the trace.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	var count int64
	for _, event := range trace {
		if event.Op != assertion.Op {
			continue
		}
		if assertion.Table != "" && event.Table != assertion.Table {
			continue
		}
		count++
	}
	if count != assertion.Count {
		target := assertion.Op
		if assertion.Table != "" {
			target += " " + assertion.Table
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s to appear %d time(s)", target, assertion.Count),
			Actual:   fmt.Sprintf("appeared %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// matchRow checks that row contains every expected column value (subset
// match). It returns a description of the first mismatch, or "".
func matchRow(row, expected map[string]any) string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		actual, ok := row[key]
		if !ok {
			return fmt.Sprintf("column %q not present", key)
		}
		if !valuesEqual(expected[key], actual) {
			return fmt.Sprintf("column %q = %v (type %T), want %v (type %T)", key, actual, actual, expected[key], expected[key])
		}
	}
	return ""
}

// valuesEqual compares a YAML value with a database value. Integers compare
// by value regardless of their Go type.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if e, ok := toInt64(expected); ok {
		a, ok := toInt64(actual)
		return ok && a == e
	}
	return reflect.DeepEqual(expected, actual)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, st *store.Store, result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(ctx, st, assertion)
		case AssertRowCount:
			err = assertRowCount(ctx, st, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
