package executor

import (
	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/pool"
)

// Result is the outcome of Query or Exec. A degraded result has no rows and
// a Warning explaining why.
type Result struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rowsAffected"`
	Warning      string           `json:"warning,omitempty"`
	Degraded     bool             `json:"degraded"`
	Attempts     int              `json:"-"`
}

func fromPoolResult(r *pool.Result, attempts int) *Result {
	if r == nil {
		return &Result{Rows: []map[string]any{}, Attempts: attempts}
	}

	rows := r.Rows
	if rows == nil {
		rows = []map[string]any{}
	}

	return &Result{
		Columns:      r.Columns,
		Rows:         rows,
		RowsAffected: r.RowsAffected,
		Attempts:     attempts,
	}
}

// FallbackResult is the degraded answer given to reads while the circuit is open.
func FallbackResult() *Result {
	return &Result{
		Rows:     []map[string]any{},
		Warning:  constant.FallbackWarning,
		Degraded: true,
	}
}
