package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/ports"
	"github.com/querysmith/querysmith/internal/core/services"
)

// Server is the HTTP surface of the agent: ad-hoc queries, schema
// inspection, run history, schedules and event streaming.
type Server struct {
	logger    *slog.Logger
	agent     *services.AgentService
	catalog   ports.SchemaCatalog
	validator *services.QueryValidator
	runs      ports.RunStore
	schedules ports.ScheduleStore
	bus       *services.EventBus
}

func NewServer(
	logger *slog.Logger,
	agent *services.AgentService,
	catalog ports.SchemaCatalog,
	validator *services.QueryValidator,
	runs ports.RunStore,
	schedules ports.ScheduleStore,
	bus *services.EventBus,
) *Server {
	return &Server{
		logger:    logger,
		agent:     agent,
		catalog:   catalog,
		validator: validator,
		runs:      runs,
		schedules: schedules,
		bus:       bus,
	}
}

// Handler mounts all routes and wraps them with the OpenAPI request
// validation middleware. CORS is applied by the caller.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("POST /v1/query/batch", s.handleQueryBatch)
	mux.HandleFunc("GET /v1/schema/tables", s.handleListTables)
	mux.HandleFunc("GET /v1/schema/tables/{table}", s.handleDescribeTable)
	mux.HandleFunc("POST /v1/validate", s.handleValidate)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/schedules", s.handleListSchedules)
	mux.HandleFunc("POST /v1/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /v1/schedules/{id}", s.handleGetSchedule)
	mux.HandleFunc("DELETE /v1/schedules/{id}", s.handleDeleteSchedule)
	mux.HandleFunc("POST /v1/schedules/{id}/toggle", s.handleToggleSchedule)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	validate, err := newValidationMiddleware()
	if err != nil {
		return nil, err
	}
	return validate(mux), nil
}

type queryRequest struct {
	Question string `json:"question"`
	Stream   bool   `json:"stream,omitempty"`
}

// handleQuery answers one question. With "stream": true the response is a
// live SSE transcript instead of a single JSON result.
// POST /v1/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question must not be empty", http.StatusBadRequest)
		return
	}

	if req.Stream {
		s.streamQuery(w, r, req.Question)
		return
	}

	result := s.agent.Query(r.Context(), req.Question)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type batchRequest struct {
	Questions []string `json:"questions"`
}

// handleQueryBatch answers several questions concurrently, results in
// input order.
// POST /v1/query/batch
func (s *Server) handleQueryBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Questions) == 0 {
		http.Error(w, "questions must not be empty", http.StatusBadRequest)
		return
	}

	results := s.agent.QueryMany(r.Context(), req.Questions)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// handleListTables returns the target database's table names.
// GET /v1/schema/tables
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.catalog.ListTables(r.Context())
	if err != nil {
		s.logger.Error("failed to list tables", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tables": tables,
		"count":  len(tables),
	})
}

// handleDescribeTable returns column metadata for one table.
// GET /v1/schema/tables/{table}
func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")

	columns, err := s.catalog.Describe(r.Context(), table)
	if err != nil {
		if errors.Is(err, domain.ErrTableNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error("failed to describe table", "table", table, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"table":   table,
		"columns": columns,
	})
}

type validateRequest struct {
	Query string `json:"query"`
}

// handleValidate runs the safety heuristics over one SQL string. The
// verdict is advisory; an unsafe query is still a 200.
// POST /v1/validate
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	verdict := s.validator.Validate(req.Query)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}

// handleListRuns returns recent runs, newest first.
// GET /v1/runs?limit=50
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		http.Error(w, "invalid limit: "+err.Error(), http.StatusBadRequest)
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run with its full transcript.
// GET /v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := s.runs.GetRun(r.Context(), domain.RunID(id))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get run", "run_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// handleHealthz reports liveness.
// GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
