package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
)

const schedulesSchema = `
CREATE TABLE IF NOT EXISTS schedules (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	question    TEXT NOT NULL,
	cron_expr   TEXT NOT NULL,
	next_run    TIMESTAMP NOT NULL,
	last_run    TIMESTAMP,
	last_answer TEXT NOT NULL DEFAULT '',
	last_status TEXT NOT NULL DEFAULT '',
	run_count   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
)`

// ScheduleStore persists scheduled questions.
type ScheduleStore struct {
	db *DB
}

func NewScheduleStore(ctx context.Context, db *DB) (*ScheduleStore, error) {
	if _, err := db.SQL.ExecContext(ctx, schedulesSchema); err != nil {
		return nil, fmt.Errorf("create schedules table: %w", err)
	}
	return &ScheduleStore{db: db}, nil
}

var _ ports.ScheduleStore = (*ScheduleStore)(nil)

func (s *ScheduleStore) SaveSchedule(ctx context.Context, sched domain.Schedule) error {
	_, err := s.db.SQL.ExecContext(ctx, s.db.bind(`
		INSERT INTO schedules (id, name, question, cron_expr, next_run, last_run, last_answer, last_status, run_count, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name        = excluded.name,
			question    = excluded.question,
			cron_expr   = excluded.cron_expr,
			next_run    = excluded.next_run,
			last_run    = excluded.last_run,
			last_answer = excluded.last_answer,
			last_status = excluded.last_status,
			run_count   = excluded.run_count,
			status      = excluded.status`),
		string(sched.ID),
		sched.Name,
		sched.Question,
		sched.CronExpr,
		sched.NextRun,
		sched.LastRun,
		sched.LastAnswer,
		string(sched.LastStatus),
		sched.RunCount,
		string(sched.Status),
		sched.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStore) GetSchedule(ctx context.Context, id domain.ScheduleID) (domain.Schedule, error) {
	row := s.db.SQL.QueryRowContext(ctx, s.db.bind(`
		SELECT id, name, question, cron_expr, next_run, last_run, last_answer, last_status, run_count, status, created_at
		FROM schedules WHERE id = ?`), string(id))

	sched, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

func (s *ScheduleStore) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	return s.list(ctx, `
		SELECT id, name, question, cron_expr, next_run, last_run, last_answer, last_status, run_count, status, created_at
		FROM schedules ORDER BY next_run ASC`)
}

func (s *ScheduleStore) DeleteSchedule(ctx context.Context, id domain.ScheduleID) error {
	res, err := s.db.SQL.ExecContext(ctx, s.db.bind(`DELETE FROM schedules WHERE id = ?`), string(id))
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	return nil
}

func (s *ScheduleStore) ListDueSchedules(ctx context.Context, now time.Time) ([]domain.Schedule, error) {
	return s.list(ctx, `
		SELECT id, name, question, cron_expr, next_run, last_run, last_answer, last_status, run_count, status, created_at
		FROM schedules
		WHERE status = 'active' AND next_run <= ?
		ORDER BY next_run ASC`, now)
}

func (s *ScheduleStore) list(ctx context.Context, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := s.db.SQL.QueryContext(ctx, s.db.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	if out == nil {
		out = []domain.Schedule{}
	}
	return out, rows.Err()
}

func scanSchedule(scan func(...any) error) (domain.Schedule, error) {
	var (
		sched      domain.Schedule
		lastStatus string
		status     string
	)
	err := scan(
		&sched.ID,
		&sched.Name,
		&sched.Question,
		&sched.CronExpr,
		&sched.NextRun,
		&sched.LastRun,
		&sched.LastAnswer,
		&lastStatus,
		&sched.RunCount,
		&status,
		&sched.CreatedAt,
	)
	if err != nil {
		return domain.Schedule{}, err
	}
	sched.LastStatus = domain.ResultStatus(lastStatus)
	sched.Status = domain.ScheduleStatus(status)
	return sched, nil
}
