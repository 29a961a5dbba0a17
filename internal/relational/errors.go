package relational

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery indicates the SQL was rejected before execution:
	// not a single read-only SELECT, a forbidden keyword, or a table
	// outside the registry.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrExecution indicates the store rejected a validated query at
	// execution time (unknown column, malformed expression).
	ErrExecution = errors.New("query execution failed")
)

// QueryError carries the offending SQL alongside the sentinel so callers
// can log or repair the exact statement. Check the category with
// errors.Is(err, ErrInvalidQuery) / errors.Is(err, ErrExecution) and
// recover the SQL with errors.As.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v (sql: %s)", e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// invalidQuery wraps a validation failure with the offending SQL.
func invalidQuery(sql, format string, args ...any) error {
	reason := fmt.Sprintf(format, args...)
	return &QueryError{SQL: sql, Err: fmt.Errorf("%w: %s", ErrInvalidQuery, reason)}
}

// executionError wraps a store-level failure with the offending SQL.
func executionError(sql string, cause error) error {
	return &QueryError{SQL: sql, Err: fmt.Errorf("%w: %v", ErrExecution, cause)}
}
