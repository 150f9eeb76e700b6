package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/services"
)

// handleListSchedules returns all scheduled questions.
// GET /v1/schedules
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.ListSchedules(r.Context())
	if err != nil {
		s.logger.Error("failed to list schedules", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if schedules == nil {
		schedules = []domain.Schedule{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

type createScheduleRequest struct {
	Name     string `json:"name"`
	Question string `json:"question"`
	CronExpr string `json:"cron_expr"`
}

// handleCreateSchedule registers a question on a cron cadence. The
// expression is parsed up front so a broken one never reaches the store.
// POST /v1/schedules
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.CronExpr) == "" {
		http.Error(w, "name, question and cron_expr are required", http.StatusBadRequest)
		return
	}

	next, err := services.NextCronRun(req.CronExpr, time.Now())
	if err != nil {
		http.Error(w, "invalid cron expression: "+err.Error(), http.StatusBadRequest)
		return
	}

	sched := domain.Schedule{
		ID:        domain.NewScheduleID(),
		Name:      req.Name,
		Question:  req.Question,
		CronExpr:  req.CronExpr,
		NextRun:   next,
		Status:    domain.ScheduleStatusActive,
		CreatedAt: time.Now(),
	}

	if err := s.schedules.SaveSchedule(r.Context(), sched); err != nil {
		s.logger.Error("failed to create schedule", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sched)
}

// handleGetSchedule returns one schedule.
// GET /v1/schedules/{id}
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sched, err := s.schedules.GetSchedule(r.Context(), domain.ScheduleID(id))
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get schedule", "schedule_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sched)
}

// handleDeleteSchedule removes one schedule.
// DELETE /v1/schedules/{id}
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.schedules.DeleteSchedule(r.Context(), domain.ScheduleID(id)); err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error("failed to delete schedule", "schedule_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleToggleSchedule flips a schedule between active and paused. A
// failed schedule comes back as active.
// POST /v1/schedules/{id}/toggle
func (s *Server) handleToggleSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sched, err := s.schedules.GetSchedule(r.Context(), domain.ScheduleID(id))
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get schedule", "schedule_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if sched.Status == domain.ScheduleStatusActive {
		sched.Status = domain.ScheduleStatusPaused
	} else {
		sched.Status = domain.ScheduleStatusActive
	}

	if err := s.schedules.SaveSchedule(r.Context(), sched); err != nil {
		s.logger.Error("failed to save schedule", "schedule_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sched)
}
