package engine

import (
	"fmt"
	"strings"
)

// ParseError is returned by Load when the input is not usable delimited text.
type ParseError struct {
	Line   int    // 1-based input line, 0 when not tied to a line
	Reason string // human-readable cause
	Err    error  // underlying csv error, if any
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %s", e.Line, e.Reason)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaMismatchError is returned when an operation is applied to a Handle
// whose schema differs from the one the caller expected.
type SchemaMismatchError struct {
	Expected Schema
	Actual   Schema
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + e.Reason
}

// InvalidChartRequestError is returned by Plan when the requested columns do
// not satisfy the chart kind's constraints.
type InvalidChartRequestError struct {
	Kind   ChartKind
	Reason string
}

func (e *InvalidChartRequestError) Error() string {
	if e.Kind == "" {
		return "invalid chart request: " + e.Reason
	}
	return fmt.Sprintf("invalid chart request (%s): %s", e.Kind, e.Reason)
}

// AllColumnsRemovedError is returned when a column-removing operation would
// leave the dataset without any column.
type AllColumnsRemovedError struct {
	Operation OpKind
	Columns   int // columns in the input handle
}

func (e *AllColumnsRemovedError) Error() string {
	return fmt.Sprintf("all columns removed: %s would drop all %d columns", e.Operation, e.Columns)
}

// InvalidOperationError is returned for unknown operation kinds and for
// parameters that do not fit the handle (unknown column, wrong type, ...).
type InvalidOperationError struct {
	Op     OpKind
	Reason string
}

func (e *InvalidOperationError) Error() string {
	if e.Op == "" {
		return "invalid operation: " + e.Reason
	}
	return fmt.Sprintf("invalid operation %s: %s", e.Op, e.Reason)
}

func invalidOp(op OpKind, format string, args ...any) error {
	return &InvalidOperationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func invalidChart(kind ChartKind, format string, args ...any) error {
	return &InvalidChartRequestError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// quoteNames renders column names for error messages.
func quoteNames(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}
