// Package runtime launches background goroutines with panic recovery.
//
// The pool maintainer, event dispatcher and breaker listeners all run through
// SafeGoWithContextAndComponent so a panic in one of them is logged, counted
// and attached to the active span instead of taking the process down.
package runtime
