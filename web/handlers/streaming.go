package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// heartbeatInterval is how often an SSE comment is written to keep
// intermediaries from closing an idle stream.
const heartbeatInterval = 15 * time.Second

// handleDebateStream streams session updates using Server-Sent Events:
// one snapshot event first, then every incremental event the session
// broadcasts. The stream ends when the client goes away.
func (h *Handler) handleDebateStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.sessions.Get(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("streaming unsupported: ResponseWriter does not implement http.Flusher")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	slog.Debug("stream connected", "id", id, "remote_addr", r.RemoteAddr)

	// Subscribe before snapshotting so nothing between the two is lost;
	// the client tolerates an event it already saw in the snapshot.
	events, cancel := s.Subscribe()
	defer cancel()

	sendEvent(w, flusher, "snapshot", s.Snapshot())

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("stream client gone", "id", id)
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			sendEvent(w, flusher, ev.Type, ev.Data)
		}
	}
}

// sendEvent writes one server-sent event and flushes it.
func sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal SSE data", "event", eventType, "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		slog.Error("failed to write SSE event", "event", eventType, "error", err)
		return
	}
	flusher.Flush()
}
