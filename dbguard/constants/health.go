package constant

// Health document status values.
const (
	HealthStatusOK    = "ok"
	HealthStatusError = "error"
)

// HealthCheckFailedMessage is returned when the health document cannot be assembled.
const HealthCheckFailedMessage = "Health check failed"

// Default error title and code used by HTTP error rendering.
const (
	DefaultErrorTitle = "Internal Server Error"
	DefaultErrorCode  = "internal_error"
)
