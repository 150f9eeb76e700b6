package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ScheduleID uniquely identifies a scheduled question.
type ScheduleID string

// NewScheduleID generates a random schedule ID.
func NewScheduleID() ScheduleID {
	return ScheduleID(uuid.New().String())
}

// ErrScheduleNotFound is returned when a schedule ID does not exist.
var ErrScheduleNotFound = errors.New("schedule not found")

// ScheduleStatus represents the current state of a scheduled question.
type ScheduleStatus string

const (
	ScheduleStatusActive ScheduleStatus = "active"
	ScheduleStatusPaused ScheduleStatus = "paused"
	ScheduleStatusFailed ScheduleStatus = "failed"
)

// Schedule is a question executed on a cron cadence. Each due firing runs
// the question through the agent like any ad-hoc query and records the
// outcome here and in the run history.
type Schedule struct {
	ID         ScheduleID     `json:"id"`
	Name       string         `json:"name"`
	Question   string         `json:"question"`
	CronExpr   string         `json:"cron_expr"`
	NextRun    time.Time      `json:"next_run"`
	LastRun    *time.Time     `json:"last_run,omitempty"`
	LastAnswer string         `json:"last_answer,omitempty"`
	LastStatus ResultStatus   `json:"last_status,omitempty"`
	RunCount   int            `json:"run_count"`
	Status     ScheduleStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}
