package constant

// FallbackWarning is attached to the degraded result returned while the
// database circuit is open.
const FallbackWarning = "db circuit open - returning empty result"

// LivenessQuery is the trivial round-trip statement used by health probes.
const LivenessQuery = "SELECT 1"

// DatabaseServiceName names the database dependency in breaker logs, metrics and spans.
const DatabaseServiceName = "postgres"
