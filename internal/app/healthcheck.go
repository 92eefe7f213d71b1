package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/operations"
)

// buildStatus tracks the outcome of the most recent attempt.
type buildStatus struct {
	mu           sync.Mutex
	attempts     int
	lastStatus   operations.Status
	lastDuration time.Duration
}

// statusReport is the /status response body.
type statusReport struct {
	Attempts       int    `json:"attempts"`
	LastStatus     string `json:"last_status,omitempty"`
	LastDurationMS int64  `json:"last_duration_ms"`
	PendingChanges int    `json:"pending_changes"`
}

func (s *buildStatus) record(result *operations.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	s.lastStatus = result.Status
	s.lastDuration = result.Duration
}

func (s *buildStatus) snapshot() statusReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := statusReport{Attempts: s.attempts, LastDurationMS: s.lastDuration.Milliseconds()}
	if s.attempts > 0 {
		r.LastStatus = s.lastStatus.String()
	}
	return r
}

// statusServer serves /health and /status during watch mode.
type statusServer struct {
	httpServer *http.Server
}

// statusRouter builds the routes of the status server.
func (a *App) statusRouter(changed *changes.Map) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		a.logger.Debug("Health check endpoint hit.", "remote_addr", req.RemoteAddr, "path", req.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		report := a.status.snapshot()
		if changed != nil {
			report.PendingChanges = len(changed.Changed())
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			a.logger.Warn("Writing status response failed.", "error", err)
		}
	})
	return r
}

// startStatusServer runs the status server in the background.
func (a *App) startStatusServer(ctx context.Context, port int, changed *changes.Map) *statusServer {
	logger := ctxlog.FromContext(ctx)
	addr := fmt.Sprintf(":%d", port)
	srv := &statusServer{httpServer: &http.Server{
		Addr:              addr,
		Handler:           a.statusRouter(changed),
		ReadHeaderTimeout: 5 * time.Second,
	}}

	go func() {
		logger.Info("Status server starting.", "address", fmt.Sprintf("http://localhost%s/status", addr))
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		if err := srv.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return srv
}

func (s *statusServer) close(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Status server shutdown failed.", "error", err)
		return
	}
	logger.Debug("Status server shut down gracefully.")
}
