// Package statusapi is the ambient process-internal observability surface:
// health check, counter snapshot, queue depth, and a recent-records feed.
// It is never a dependency of internal/p3, internal/transport, or
// internal/delivery — those packages work with it entirely absent. Grounded
// in the teacher's internal/web/server.go mux + graceful-shutdown pattern.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"p3bridge/internal/delivery"
	"p3bridge/internal/events"
	"p3bridge/internal/transport"
)

// Server exposes GET /healthz, /status, /queue, and /recent.
type Server struct {
	http   *http.Server
	counts *transport.Counters
	recent events.Buffer
	pipe   *delivery.Pipeline
}

// New builds a Server listening on addr. counts, recent, and pipe are the
// process's shared state; none of them are owned by this package.
func New(addr string, counts *transport.Counters, recent events.Buffer, pipe *delivery.Pipeline) *Server {
	mux := http.NewServeMux()
	s := &Server{counts: counts, recent: recent, pipe: pipe}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/queue", s.handleQueue)
	mux.HandleFunc("/recent", s.handleRecent)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           withCommonHeaders(mux),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then gracefully shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		log.Printf("[statusapi] listening on http://%s", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shCtx); err != nil {
			log.Printf("[statusapi] shutdown error: %v", err)
		} else {
			log.Printf("[statusapi] stopped")
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func withCommonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": fmt.Sprintf("method %s not allowed", r.Method)})
		return true
	}
	return false
}
