package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// Runner is the pipeline surface the server exposes: readiness plus the
// report of the most recent completed run.
type Runner interface {
	sharedobs.ReadinessChecker
	LatestReport() (domain.ReconcileReport, bool)
}

// Server exposes health, readiness, run report, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /report, and /metrics routes.
func NewServer(addr string, runner Runner, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(runner))
	mux.HandleFunc("GET /report", handleReport(runner))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleReport(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report, ok := runner.LatestReport()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{
				"status": "no completed run",
			})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, report)
	}
}
