package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned by Exec when the breaker rejects the call.
	ErrCircuitOpen = errors.New("database circuit is open")
	// ErrOperationTimeout is returned when the retry sequence outlives OperationTimeout.
	ErrOperationTimeout = errors.New("database operation timed out")
	// ErrCanceled is returned when the caller's context ended first. It is
	// left out of the breaker statistics.
	ErrCanceled = errors.New("database call abandoned by caller")
	// ErrNilPool is returned by New without a pool.
	ErrNilPool = errors.New("pool cannot be nil")
	// ErrNilBreaker is returned by New without a circuit breaker.
	ErrNilBreaker = errors.New("circuit breaker cannot be nil")
)

// QueryError is a failure reported by the database for one attempt.
type QueryError struct {
	Attempt int
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ExcludedFromBreaker tells the breaker which outcomes say nothing about
// database health. Pass it to circuitbreaker.WithIsExcluded.
func ExcludedFromBreaker(err error) bool {
	return errors.Is(err, ErrCanceled)
}
