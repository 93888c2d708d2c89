package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/actis-dev/actis/internal/streaming"
)

// handleSSEInvocations streams invocation lifecycle events via Server-Sent
// Events, optionally narrowed by invocation_id and action query params.
func (s *Server) handleSSEInvocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := streaming.Filter{
		InvocationID: q.Get("invocation_id"),
		Action:       q.Get("action"),
	}
	s.serveSSE(w, r, filter)
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, filter streaming.Filter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
			flusher.Flush()
		}
	}
}
