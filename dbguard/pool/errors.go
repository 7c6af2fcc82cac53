package pool

import (
	"errors"
	"regexp"
)

var (
	// ErrAcquireTimeout is returned when no connection became available within AcquireTimeout.
	ErrAcquireTimeout = errors.New("timeout exceeded when trying to acquire a connection")
	// ErrPoolClosed is returned by Acquire after Close, and to callers still queued at Close.
	ErrPoolClosed = errors.New("connection pool is closed")
	// ErrMissingConnectionString is returned when the connector has no DSN to dial.
	ErrMissingConnectionString = errors.New("database connection string is not configured")
	// ErrNilConnector is returned by New when no Connector is supplied.
	ErrNilConnector = errors.New("connector cannot be nil")
	// ErrInvalidConfig wraps every pool configuration validation failure.
	ErrInvalidConfig = errors.New("invalid pool config")
	// ErrConnReleased is returned when a PooledConn is used after Release.
	ErrConnReleased = errors.New("connection already released to the pool")
)

var (
	connectionStringCredentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	connectionStringPasswordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
)

// ConnectError reports a failure to open a physical connection.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return "connect to database: " + sanitizeSensitiveError(e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// sanitizeSensitiveError strips credentials from driver errors that echo the DSN.
func sanitizeSensitiveError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := connectionStringCredentialsPattern.ReplaceAllString(err.Error(), "://***@")

	return connectionStringPasswordPattern.ReplaceAllString(sanitized, "${1}***")
}
