// Package analytics turns a natural-language question into a constrained,
// schema-validated aggregation plan and executes it inside a sandboxed,
// allow-listed interpreter over row-security-filtered data.
package analytics

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExecutionTimeout is returned when a query exceeds the sandbox
	// wall-clock ceiling. The ceiling is enforced independently of the
	// turn-level deadline.
	ErrExecutionTimeout = errors.New("analytics execution timed out")

	// ErrRowLimitExceeded is returned when intermediate state (group
	// cardinality) exceeds the hard resource ceiling.
	ErrRowLimitExceeded = errors.New("analytics row limit exceeded")

	// ErrNoAggregableDimension means the question offers nothing to
	// aggregate or look up; the turn routes to clarification instead.
	ErrNoAggregableDimension = errors.New("no aggregable dimension in question")
)

// SchemaMismatchError reports plan columns absent from the discovered schema.
// The plan is rejected before any execution; one bounded replan follows.
type SchemaMismatchError struct {
	Columns []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("plan references unknown columns: %s", strings.Join(e.Columns, ", "))
}

// AmbiguousColumnError reports a date-role reference the precedence list
// could not resolve. Flagged rather than guessed.
type AmbiguousColumnError struct {
	Role   string
	Reason string
}

func (e *AmbiguousColumnError) Error() string {
	return fmt.Sprintf("ambiguous column for date role %q: %s", e.Role, e.Reason)
}

// PlanValidationError reports a plan violating the allow-listed primitive
// set (unknown operator or aggregate function).
type PlanValidationError struct {
	Detail string
}

func (e *PlanValidationError) Error() string {
	return "invalid query plan: " + e.Detail
}
