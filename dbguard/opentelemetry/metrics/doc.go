// Package metrics wraps an OpenTelemetry meter with a lazily populated
// instrument cache and fluent builders, plus the pre-declared instruments the
// pool, breaker and executor report through.
package metrics
