package pool

import "context"

// Result is the row set returned by a query. Rows maps column name to value.
type Result struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rowsAffected"`
}

// Conn is a single physical database connection. Implementations need not be
// safe for concurrent use; the pool guarantees one owner at a time.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (*Result, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector opens new physical connections.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Connect calls f(ctx).
//
//nolint:ireturn
func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}
