package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querysmith/querysmith/internal/adapters/sqldb"
	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/services"
)

// scriptedLLM returns canned responses in order.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	index     int
}

func (s *scriptedLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.responses) {
		return "", fmt.Errorf("scripted llm exhausted after %d responses", len(s.responses))
	}
	resp := s.responses[s.index]
	s.index++
	return resp, nil
}

var promptQuestionRe = regexp.MustCompile(`Question: (.+)`)

// echoLLM answers every question with a final answer derived from the
// prompt, which keeps concurrent batch tests deterministic.
type echoLLM struct{}

func (echoLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	matches := promptQuestionRe.FindAllStringSubmatch(prompt, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("no question in prompt")
	}
	q := matches[len(matches)-1][1]
	return "Final Answer: echo " + q, nil
}

// newTestStack wires a full server over in-memory SQLite, with the demo
// schema as the target database.
func newTestStack(t *testing.T, llm domain.LLMProvider) (*Server, *services.EventBus) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	target, err := sqldb.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { target.Close() })
	require.NoError(t, sqldb.SeedDemo(ctx, target))

	state, err := sqldb.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	runStore, err := sqldb.NewRunStore(ctx, state)
	require.NoError(t, err)
	schedStore, err := sqldb.NewScheduleStore(ctx, state)
	require.NoError(t, err)

	catalog := sqldb.NewCatalog(target)
	executor := sqldb.NewExecutor(target)
	validator := services.NewQueryValidator()
	advisor := services.NewErrorRecoveryAdvisor()

	registry := domain.NewToolRegistry()
	require.NoError(t, services.RegisterSQLTools(registry, catalog, executor, validator, advisor, 0))

	agent := services.NewReActAgent(logger, llm, registry, 10, 0)
	bus := services.NewEventBus(logger)
	facade := services.NewAgentService(logger, agent, runStore, bus)

	return NewServer(logger, facade, catalog, validator, runStore, schedStore, bus), bus
}

func newTestHandler(t *testing.T, llm domain.LLMProvider) http.Handler {
	t.Helper()
	srv, _ := newTestStack(t, llm)
	handler, err := srv.Handler()
	require.NoError(t, err)
	return handler
}

func doJSON(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestServer_QueryAndHistory(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"Thought: I can answer directly.\nFinal Answer: There are 5 albums.",
	}}
	handler := newTestHandler(t, llm)

	w := doJSON(handler, "POST", "/v1/query", `{"question": "How many albums are in the database?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.AgentResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "How many albums are in the database?", result.Question)
	assert.Equal(t, "There are 5 albums.", result.Answer)
	assert.Equal(t, domain.StatusSuccess, result.Status)

	// The run must show up in the history with its transcript.
	w = doJSON(handler, "GET", "/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Runs  []domain.RunSummary `json:"runs"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Count)

	w = doJSON(handler, "GET", "/v1/runs/"+string(listResp.Runs[0].ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var run domain.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "There are 5 albums.", run.Answer)
	require.NotEmpty(t, run.Transcript)
	assert.Equal(t, domain.TurnFinalAnswer, run.Transcript[len(run.Transcript)-1].Kind)
}

func TestServer_GetRunNotFound(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	w := doJSON(handler, "GET", "/v1/runs/no-such-run", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_BatchQuery(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	questions := []string{"first?", "second?", "third?"}
	body, _ := json.Marshal(map[string]any{"questions": questions})

	w := doJSON(handler, "POST", "/v1/query/batch", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []domain.AgentResult `json:"results"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Count)
	for i, q := range questions {
		assert.Equal(t, q, resp.Results[i].Question)
		assert.Equal(t, "echo "+q, resp.Results[i].Answer)
		assert.Equal(t, domain.StatusSuccess, resp.Results[i].Status)
	}
}

func TestServer_SchemaEndpoints(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	w := doJSON(handler, "GET", "/v1/schema/tables", "")
	require.Equal(t, http.StatusOK, w.Code)

	var tablesResp struct {
		Tables []string `json:"tables"`
		Count  int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tablesResp))
	assert.Equal(t, []string{"Album", "Artist", "Track"}, tablesResp.Tables)

	w = doJSON(handler, "GET", "/v1/schema/tables/Track", "")
	require.Equal(t, http.StatusOK, w.Code)

	var describeResp struct {
		Table   string `json:"table"`
		Columns []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Nullable bool   `json:"nullable"`
		} `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &describeResp))
	assert.Equal(t, "Track", describeResp.Table)
	names := make([]string, len(describeResp.Columns))
	for i, c := range describeResp.Columns {
		names[i] = c.Name
	}
	assert.Contains(t, names, "TrackId")
	assert.Contains(t, names, "Composer")

	w = doJSON(handler, "GET", "/v1/schema/tables/Invoice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ValidateEndpoint(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	w := doJSON(handler, "POST", "/v1/validate", `{"query": "SELECT COUNT(*) FROM Album"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var verdict services.Verdict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.True(t, verdict.Safe)

	w = doJSON(handler, "POST", "/v1/validate", `{"query": "DROP TABLE Album"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.False(t, verdict.Safe)
	assert.Contains(t, verdict.Reason, "DROP")
}

func TestServer_RunsLimitRejected(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	w := doJSON(handler, "GET", "/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ScheduleCRUD(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	body := `{"name": "daily album count", "question": "How many albums are in the database?", "cron_expr": "0 9 * * *"}`
	w := doJSON(handler, "POST", "/v1/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var sched domain.Schedule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sched))
	assert.NotEmpty(t, sched.ID)
	assert.Equal(t, domain.ScheduleStatusActive, sched.Status)
	assert.False(t, sched.NextRun.IsZero())

	w = doJSON(handler, "GET", "/v1/schedules", "")
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Schedules []domain.Schedule `json:"schedules"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.Count)

	w = doJSON(handler, "POST", "/v1/schedules/"+string(sched.ID)+"/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sched))
	assert.Equal(t, domain.ScheduleStatusPaused, sched.Status)

	w = doJSON(handler, "DELETE", "/v1/schedules/"+string(sched.ID), "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(handler, "GET", "/v1/schedules/"+string(sched.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ScheduleBadCron(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	body := `{"name": "broken", "question": "q?", "cron_expr": "not a cron"}`
	w := doJSON(handler, "POST", "/v1/schedules", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid cron expression")
}

func TestServer_QueryStream(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"Thought: Check the tables first.\nAction: list_sql_database\nAction Input: \"\"",
		"Thought: Done.\nFinal Answer: Album, Artist and Track.",
	}}
	handler := newTestHandler(t, llm)

	w := doJSON(handler, "POST", "/v1/query", `{"question": "What tables exist?", "stream": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: turn")
	assert.Contains(t, body, `"kind":"observation"`)
	assert.Contains(t, body, `"kind":"final_answer"`)
	assert.Contains(t, body, "event: result")
	assert.Contains(t, body, `"status":"success"`)
}

func TestServer_EventsStream(t *testing.T) {
	srv, bus := newTestStack(t, echoLLM{})
	handler, err := srv.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Publish repeatedly until the subscriber picks one up; the subscribe
	// races the first publish otherwise.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bus.Publish(services.Event{
					RunID:     "run-1",
					Type:      services.EventTypeRunCompleted,
					Data:      `{"status":"success"}`,
					Timestamp: time.Now().UnixMilli(),
				})
			}
		}
	}()

	lines := make(chan string, 16)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
	}()

	var event, data string
	timeout := time.After(5 * time.Second)
	for event == "" || data == "" {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before an event arrived")
			}
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "event: ") {
				event = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		case <-timeout:
			t.Fatal("timed out waiting for an event")
		}
	}

	assert.Equal(t, "run_completed", event)
	assert.Contains(t, data, `"status":"success"`)
}

func TestServer_Healthz(t *testing.T) {
	handler := newTestHandler(t, echoLLM{})

	w := doJSON(handler, "GET", "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
