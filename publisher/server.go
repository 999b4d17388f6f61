package publisher

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the read-only lookup the publisher's inspection endpoints need:
// the most recently rendered Outcome for one change request.
type Store interface {
	Outcome(repository string, number int64) (Outcome, bool)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Store   Store
	Metrics *Metrics
}

// Server exposes read-only status inspection and a Prometheus /metrics
// endpoint; it never mutates governance state, matching the publisher's role
// as the terminal, side-effect-free step of evaluation (spec.md §4.9).
type Server struct {
	store   Store
	metrics *Metrics

	router http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = ModuleMetrics()
	}
	srv := &Server{store: cfg.Store, metrics: cfg.Metrics}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/status", func(status chi.Router) {
		status.Get("/{repository}/{number}", s.getOutcome)
	})

	return r
}

func (s *Server) getOutcome(w http.ResponseWriter, r *http.Request) {
	repository := chi.URLParam(r, "repository")
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		http.Error(w, "invalid change request number", http.StatusBadRequest)
		return
	}

	outcome, ok := s.store.Outcome(repository, number)
	if !ok {
		http.Error(w, "no outcome recorded for this change request", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}
