package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// RunID uniquely identifies one agent run.
type RunID string

// NewRunID generates a random run ID.
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// Run is the persisted record of one completed agent run, transcript
// included. Listing endpoints use RunSummary instead.
type Run struct {
	ID         RunID        `json:"id"`
	Question   string       `json:"question"`
	Answer     string       `json:"answer"`
	Status     ResultStatus `json:"status"`
	Iterations int          `json:"iterations"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Transcript []Turn       `json:"transcript,omitempty"`
}

// RunSummary is a lightweight view for listing runs.
type RunSummary struct {
	ID         RunID        `json:"id"`
	Question   string       `json:"question"`
	Status     ResultStatus `json:"status"`
	Iterations int          `json:"iterations"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
}

// Result shapes the run into its externally visible form.
func (r *Run) Result() AgentResult {
	return AgentResult{
		Question: r.Question,
		Answer:   r.Answer,
		Status:   r.Status,
	}
}
