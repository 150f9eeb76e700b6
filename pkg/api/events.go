package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/querysmith/querysmith/internal/core/domain"
)

// streamQuery answers one question as a live SSE stream: a "turn" event per
// transcript entry as it happens, then a single "result" event. The loop
// runs on this goroutine, so writes never interleave.
func (s *Server) streamQuery(w http.ResponseWriter, r *http.Request, question string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := func(turn domain.Turn) {
		data, err := json.Marshal(turn)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: turn\ndata: %s\n\n", data)
		flusher.Flush()
	}

	// A dropped client cancels r.Context(), which stops the loop at the
	// top of its next turn.
	run := s.agent.Execute(r.Context(), question, sink)

	data, err := json.Marshal(run.Result())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: result\ndata: %s\n\n", data)
	flusher.Flush()
}

// handleEvents streams the global event feed: every completed run and
// every schedule firing, regardless of origin.
// GET /v1/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsub := s.bus.SubscribeGlobal()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Data)
			flusher.Flush()
		}
	}
}
