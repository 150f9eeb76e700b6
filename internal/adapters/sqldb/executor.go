package sqldb

import (
	"context"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
)

// Executor runs model-written SQL against the target database. Driver
// failures come back as *domain.DatabaseError carrying the backend's
// message untouched; the recovery advisor matches on that raw text.
type Executor struct {
	db *DB
}

func NewExecutor(db *DB) *Executor {
	return &Executor{db: db}
}

var _ ports.QueryExecutor = (*Executor)(nil)

func (e *Executor) Execute(ctx context.Context, query string) ([]ports.Row, error) {
	rows, err := e.db.SQL.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.DatabaseError{Message: err.Error(), Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &domain.DatabaseError{Message: err.Error(), Err: err}
	}

	var out []ports.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &domain.DatabaseError{Message: err.Error(), Err: err}
		}

		row := make(ports.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.DatabaseError{Message: err.Error(), Err: err}
	}
	return out, nil
}

// normalizeValue turns driver-specific scan types into JSON-friendly ones.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
