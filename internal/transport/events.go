package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const heartbeatInterval = 25 * time.Second

// streamEvents relays the caller's realtime events as server-sent events. Delivery is
// best-effort; clients re-read state after reconnecting.
func (s *server) streamEvents(w http.ResponseWriter, r *http.Request) {
	actorID, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required"))
		return
	}
	if s.events == nil {
		writeError(w, newAPIError(http.StatusServiceUnavailable, "dependency_failure", "event stream is not configured"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, newAPIError(http.StatusInternalServerError, "internal_error", "streaming unsupported"))
		return
	}

	sub, err := s.events.Subscribe(r.Context(), actorID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "event subscription failed", "actor_id", actorID, "error", err)
		writeError(w, newAPIError(http.StatusServiceUnavailable, "dependency_failure", "event stream unavailable"))
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
