package statusapi

import (
	"net/http"
	"strconv"
	"time"

	"p3bridge/internal/delivery"
)

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /status — the transport.Counters snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"data": s.counts.Snapshot(),
	})
}

// GET /queue — depth and head entry of the persistent delivery queue.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r) {
		return
	}
	resp := map[string]any{
		"ok":    true,
		"depth": s.pipe.QueueDepth(),
	}
	if head, ok := s.pipe.QueueHead(); ok {
		resp["head"] = head
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /recent?n=20 — the last N parsed records, most recent first.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if methodNotAllowed(w, r) {
		return
	}
	n := 20
	if q := r.URL.Query().Get("n"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			n = parsed
		}
	}
	entries := s.recent.Recent(n)
	envs := make([]*delivery.Envelope, 0, len(entries))
	for _, e := range entries {
		envs = append(envs, delivery.BuildEnvelope(e.Record))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"data": envs,
	})
}
