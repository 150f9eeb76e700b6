package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
)

// AgentService is the facade callers talk to. It owns run identity,
// persistence and event publication around the bare loop, and absorbs
// fatal loop errors into error-status results so callers never branch on
// an error return.
type AgentService struct {
	logger *slog.Logger
	agent  *ReActAgent
	runs   ports.RunStore
	bus    *EventBus
}

// NewAgentService wires the facade. runs and bus may be nil; runs are then
// not persisted and no events are published.
func NewAgentService(logger *slog.Logger, agent *ReActAgent, runs ports.RunStore, bus *EventBus) *AgentService {
	return &AgentService{
		logger: logger,
		agent:  agent,
		runs:   runs,
		bus:    bus,
	}
}

// Query answers one natural-language question. The returned result always
// carries a status; model backend failures and cancellations come back as
// error-status results, not Go errors.
func (s *AgentService) Query(ctx context.Context, question string) domain.AgentResult {
	return s.QueryStream(ctx, question, nil)
}

// QueryStream is Query with a live transcript: every turn is handed to sink
// as it occurs, before the final result is returned. sink may be nil.
func (s *AgentService) QueryStream(ctx context.Context, question string, sink TurnSink) domain.AgentResult {
	return s.Execute(ctx, question, sink).Result()
}

// Execute runs one question through the loop and returns the full Run,
// transcript included. It never returns an error; a run that could not
// proceed is recorded with error status and the failure text as its answer.
func (s *AgentService) Execute(ctx context.Context, question string, sink TurnSink) *domain.Run {
	id := domain.NewRunID()
	s.logger.Info("agent query", "run_id", string(id), "question", question)

	run, err := s.agent.Run(ctx, id, question, sink)
	if err != nil {
		s.logger.Error("agent run failed", "run_id", string(id), "error", err)
		run = &domain.Run{
			ID:        id,
			Question:  question,
			Answer:    err.Error(),
			Status:    domain.StatusError,
			StartedAt: time.Now(),
		}
	}

	s.persist(ctx, run)
	s.publishCompleted(run)
	return run
}

// QueryMany answers a batch of questions concurrently. The result slice is
// index-aligned with the input; results[i] always answers questions[i].
func (s *AgentService) QueryMany(ctx context.Context, questions []string) []domain.AgentResult {
	results := make([]domain.AgentResult, len(questions))

	g, ctx := errgroup.WithContext(ctx)
	for i, q := range questions {
		g.Go(func() error {
			results[i] = s.Query(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *AgentService) persist(ctx context.Context, run *domain.Run) {
	if s.runs == nil {
		return
	}
	// Persistence is bookkeeping; a failed save must not fail the answer.
	if err := s.runs.SaveRun(ctx, *run); err != nil {
		s.logger.Error("failed to save run", "run_id", string(run.ID), "error", err)
	}
}

func (s *AgentService) publishCompleted(run *domain.Run) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(run.Result())
	if err != nil {
		return
	}
	s.bus.Publish(Event{
		RunID:     string(run.ID),
		Type:      EventTypeRunCompleted,
		Data:      string(data),
		Timestamp: time.Now().UnixMilli(),
	})
}
