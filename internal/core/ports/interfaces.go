package ports

import (
	"context"
	"time"

	"github.com/querysmith/querysmith/internal/core/domain"
)

// Column describes one column of a table as reported by the backend catalog.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Row is one result row, column name to value.
type Row map[string]any

// SchemaCatalog is a read-only view over the database's own catalog.
type SchemaCatalog interface {
	// ListTables returns all table names, ordered for stable output.
	ListTables(ctx context.Context) ([]string, error)

	// Describe returns the column metadata for one table. Fails with
	// domain.ErrTableNotFound if the table does not exist.
	Describe(ctx context.Context, table string) ([]Column, error)
}

// QueryExecutor runs arbitrary SQL against the backend. Failures surface as
// *domain.DatabaseError carrying the driver's message verbatim.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]Row, error)
}

// RunStore persists completed agent runs.
type RunStore interface {
	SaveRun(ctx context.Context, run domain.Run) error

	// GetRun fails with domain.ErrRunNotFound for unknown IDs.
	GetRun(ctx context.Context, id domain.RunID) (domain.Run, error)

	// ListRuns returns the most recent runs, newest first. limit below 1
	// falls back to a store default.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

// ScheduleStore persists scheduled questions.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, s domain.Schedule) error
	GetSchedule(ctx context.Context, id domain.ScheduleID) (domain.Schedule, error)
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	DeleteSchedule(ctx context.Context, id domain.ScheduleID) error
	ListDueSchedules(ctx context.Context, now time.Time) ([]domain.Schedule, error)
}
