// Package backoff provides exponential delays and a bounded retry policy.
//
// Policy runs an operation up to MaxAttempts times, sleeping Delay(attempt)
// between attempts. Sleep is injectable so retry timing can be asserted in
// tests without waiting on real timers.
package backoff
