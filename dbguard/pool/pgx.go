package pool

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// PgxConnector dials PostgreSQL with one *pgx.Conn per pooled connection.
type PgxConnector struct {
	DSN string
	// ConnectTimeout caps a single dial when the context carries no earlier deadline.
	ConnectTimeout time.Duration
}

// NewPgxConnector returns a connector for dsn.
func NewPgxConnector(dsn string) *PgxConnector {
	return &PgxConnector{DSN: dsn}
}

// Connect dials a new connection. An empty DSN fails with ErrMissingConnectionString.
//
//nolint:ireturn
func (c *PgxConnector) Connect(ctx context.Context) (Conn, error) {
	if strings.TrimSpace(c.DSN) == "" {
		return nil, ErrMissingConnectionString
	}

	cfg, err := pgx.ParseConfig(c.DSN)
	if err != nil {
		return nil, &ConnectError{Err: err}
	}

	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &pgxConn{conn: conn}, nil
}

type pgxConn struct {
	conn *pgx.Conn
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	out := make([]map[string]any, 0)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows.Close()

	return &Result{
		Columns:      columns,
		Rows:         out,
		RowsAffected: rows.CommandTag().RowsAffected(),
	}, nil
}

func (c *pgxConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}
