package constant

// TelemetrySDKName identifies this library in OTEL telemetry resource attributes.
const TelemetrySDKName = "lib-dbguard/opentelemetry"

// MaxMetricLabelLength is the maximum length for metric labels to prevent cardinality explosion.
const MaxMetricLabelLength = 64

// Telemetry attribute keys.
const (
	// AttrDBSystem is the OTEL semantic convention attribute key for the database system name.
	AttrDBSystem = "db.system"
	// AttrDBOperationOutcome records how a resilient call ended (ok, error, fallback, rejected).
	AttrDBOperationOutcome = "db.operation.outcome"
	// AttrDBOperationKind distinguishes reads from writes.
	AttrDBOperationKind = "db.operation.kind"
	// AttrDBAttempts is the number of attempts a call used.
	AttrDBAttempts = "db.attempts"
	// AttrPrefixPanic is the prefix for panic event attributes.
	AttrPrefixPanic = "panic."
)

// DBSystemPostgreSQL is the OTEL semantic convention value for PostgreSQL.
const DBSystemPostgreSQL = "postgresql"

// Telemetry metric names.
const (
	MetricPoolConnectionsTotal = "db_pool_connections_total"
	MetricPoolConnectionsIdle  = "db_pool_connections_idle"
	MetricPoolWaitingRequests  = "db_pool_waiting_requests"
	MetricPoolAcquireDuration  = "db_pool_acquire_duration_ms"
	MetricPoolEventsTotal      = "db_pool_events_total"

	MetricQueryAttemptsTotal  = "db_query_attempts_total"
	MetricQueryFallbacksTotal = "db_query_fallbacks_total"

	MetricBreakerStateTransitions = "circuit_breaker_state_transitions_total"
	MetricBreakerExecutions       = "circuit_breaker_executions_total"

	// MetricPanicRecoveredTotal is the counter metric for recovered panics.
	MetricPanicRecoveredTotal = "panic_recovered_total"
)

// EventPanicRecovered is the span event name for recovered panics.
const EventPanicRecovered = "panic.recovered"

// SanitizeMetricLabel truncates a label value to MaxMetricLabelLength
// to prevent metric cardinality explosion in OTEL backends.
func SanitizeMetricLabel(value string) string {
	if len(value) > MaxMetricLabelLength {
		return value[:MaxMetricLabelLength]
	}

	return value
}
