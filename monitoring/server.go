package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes /metrics and /healthz while a pipeline run is in progress.
type Server struct {
	metrics    *Metrics
	pinger     Pinger
	httpServer *http.Server
}

// NewServer builds the HTTP server. pinger may be nil, in which case /healthz
// only reports the process as alive.
func NewServer(addr string, m *Metrics, pinger Pinger) *Server {
	s := &Server{metrics: m, pinger: pinger}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the chi router; exported for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", s.handleHealth)
	return r
}

// Start serves in the calling goroutine until Shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			status["store"] = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			status["store"] = "healthy"
		}
	}

	body, _ := json.Marshal(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
