// Package executor runs queries against the pool with retry, exponential
// backoff, an operation timeout and a circuit breaker.
//
// Query is for reads: when the breaker rejects the call it returns an empty,
// degraded Result carrying a warning instead of an error. Exec is for writes:
// a rejected write fails with ErrCircuitOpen, since reporting success for a
// statement that never ran would be wrong.
package executor
