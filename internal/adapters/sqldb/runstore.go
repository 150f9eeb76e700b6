package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	iterations  INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	transcript  TEXT NOT NULL DEFAULT '[]'
)`

// RunStore persists completed runs, transcript included. The transcript is
// stored as a JSON column; it is only ever read back whole.
type RunStore struct {
	db *DB
}

func NewRunStore(ctx context.Context, db *DB) (*RunStore, error) {
	if _, err := db.SQL.ExecContext(ctx, runsSchema); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &RunStore{db: db}, nil
}

var _ ports.RunStore = (*RunStore)(nil)

func (s *RunStore) SaveRun(ctx context.Context, run domain.Run) error {
	transcript, err := json.Marshal(run.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	_, err = s.db.SQL.ExecContext(ctx, s.db.bind(`
		INSERT INTO runs (id, question, answer, status, iterations, started_at, duration_ms, transcript)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			answer      = excluded.answer,
			status      = excluded.status,
			iterations  = excluded.iterations,
			duration_ms = excluded.duration_ms,
			transcript  = excluded.transcript`),
		string(run.ID),
		run.Question,
		run.Answer,
		string(run.Status),
		run.Iterations,
		run.StartedAt,
		run.DurationMs,
		string(transcript),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id domain.RunID) (domain.Run, error) {
	row := s.db.SQL.QueryRowContext(ctx, s.db.bind(`
		SELECT id, question, answer, status, iterations, started_at, duration_ms, transcript
		FROM runs WHERE id = ?`), string(id))

	var (
		run        domain.Run
		status     string
		transcript string
	)
	err := row.Scan(&run.ID, &run.Question, &run.Answer, &status, &run.Iterations, &run.StartedAt, &run.DurationMs, &transcript)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	run.Status = domain.ResultStatus(status)

	if err := json.Unmarshal([]byte(transcript), &run.Transcript); err != nil {
		return domain.Run{}, fmt.Errorf("decode transcript: %w", err)
	}
	return run, nil
}

// ListRuns returns summaries of the most recent runs (newest first).
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.SQL.QueryContext(ctx, s.db.bind(`
		SELECT id, question, status, iterations, started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		var (
			summary domain.RunSummary
			status  string
		)
		if err := rows.Scan(&summary.ID, &summary.Question, &status, &summary.Iterations, &summary.StartedAt, &summary.DurationMs); err != nil {
			return nil, err
		}
		summary.Status = domain.ResultStatus(status)
		out = append(out, summary)
	}
	if out == nil {
		out = []domain.RunSummary{}
	}
	return out, rows.Err()
}
