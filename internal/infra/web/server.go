package web

import (
	"net/http"

	"multitalk-demo/internal/capture"
	"multitalk-demo/internal/config"
	"multitalk-demo/internal/infra/worker"
	"multitalk-demo/internal/queue"
	"multitalk-demo/internal/status"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the queue, progress and log views to the demo UI.
type Server struct {
	qm      *queue.Manager
	tracker *capture.Tracker
	runner  *worker.Runner
	agg     *status.Aggregator
	cfg     *config.Config
	log     *zerolog.Logger
}

func NewServer(
	qm *queue.Manager,
	tracker *capture.Tracker,
	runner *worker.Runner,
	agg *status.Aggregator,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	wlog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		qm:      qm,
		tracker: tracker,
		runner:  runner,
		agg:     agg,
		cfg:     cfg,
		log:     &wlog,
	}
}

// Routes builds the chi router for the whole API surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleAdmit)
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Get("/queue", s.handleQueueStatus)
		r.Get("/progress", s.handleProgress)
		r.Get("/logs", s.handleLogs)
		r.Get("/dashboard", s.handleDashboard)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
