package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
)

// cronParser accepts standard 5-field expressions plus descriptors like
// "@hourly".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextCronRun parses a cron expression and returns the first firing time
// strictly after from.
func NextCronRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}

// CronScheduler is a goroutine that checks for due schedules every minute
// and runs their questions through the agent.
type CronScheduler struct {
	logger *slog.Logger
	store  ports.ScheduleStore
	agent  *AgentService
	bus    *EventBus
	tick   time.Duration // check interval (1 minute default)
}

func NewCronScheduler(logger *slog.Logger, store ports.ScheduleStore, agent *AgentService, bus *EventBus) *CronScheduler {
	return &CronScheduler{
		logger: logger,
		store:  store,
		agent:  agent,
		bus:    bus,
		tick:   1 * time.Minute,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *CronScheduler) Run(ctx context.Context) error {
	s.logger.Info("cron scheduler started", "check_interval", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cron scheduler stopped")
			return nil
		case <-ticker.C:
			s.checkAndExecute(ctx)
		}
	}
}

func (s *CronScheduler) checkAndExecute(ctx context.Context) {
	now := time.Now()
	due, err := s.store.ListDueSchedules(ctx, now)
	if err != nil {
		s.logger.Error("failed to list due schedules", "error", err)
		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.Info("executing due schedules", "count", len(due))

	for _, sched := range due {
		go s.execute(ctx, sched)
	}
}

func (s *CronScheduler) execute(ctx context.Context, sched domain.Schedule) {
	s.logger.Info("executing scheduled question", "schedule_id", string(sched.ID), "name", sched.Name)

	result := s.agent.Query(ctx, sched.Question)

	now := time.Now()
	sched.LastRun = &now
	sched.RunCount++
	sched.LastStatus = result.Status
	sched.LastAnswer = result.Answer
	// Truncate answer for storage
	if len(sched.LastAnswer) > 4096 {
		sched.LastAnswer = sched.LastAnswer[:4096] + "... (truncated)"
	}

	next, parseErr := NextCronRun(sched.CronExpr, now)
	if parseErr != nil {
		// The expression was valid at creation, so this is unexpected.
		s.logger.Error("invalid cron expression", "schedule_id", string(sched.ID), "expr", sched.CronExpr, "error", parseErr)
		sched.Status = domain.ScheduleStatusFailed
	} else {
		sched.NextRun = next
	}

	s.publishResult(sched, now)

	if saveErr := s.store.SaveSchedule(ctx, sched); saveErr != nil {
		s.logger.Error("failed to save schedule after execution", "schedule_id", string(sched.ID), "error", saveErr)
	}
}

// publishResult delivers the answer to every listener. Scheduled runs have
// no requesting client, so results go out on the broadcast channel.
func (s *CronScheduler) publishResult(sched domain.Schedule, now time.Time) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"schedule_id": string(sched.ID),
		"name":        sched.Name,
		"question":    sched.Question,
		"answer":      sched.LastAnswer,
		"status":      string(sched.LastStatus),
		"timestamp":   now.UnixMilli(),
	})
	s.bus.Publish(Event{
		RunID:     BroadcastChannel,
		Type:      EventTypeScheduleResult,
		Data:      string(payload),
		Timestamp: now.UnixMilli(),
	})
}
