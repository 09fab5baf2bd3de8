package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/sharecounts/counters"
	"github.com/briangreenhill/sharecounts/networks"
)

type Server struct {
	Router   *chi.Mux
	Counters *counters.Counters
	Registry *networks.Registry
	MaxAge   time.Duration // Cache-Control max-age on count responses
	Logger   zerolog.Logger
}

type ServerOptions struct {
	Counters *counters.Counters
	Registry *networks.Registry
	MaxAge   time.Duration
	Logger   zerolog.Logger
	Metrics  prometheus.Gatherer // nil disables /metrics
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimw.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, Counters: opts.Counters, Registry: opts.Registry, MaxAge: opts.MaxAge, Logger: opts.Logger}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Get("/networks", s.handleNetworks)
	r.Get("/counts", s.handleCounts)

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}

	return s
}

type errorResponse struct {
	Error   string   `json:"error"`
	Invalid []string `json:"invalid,omitempty"`
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.Registry.List())
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageURL := strings.TrimSpace(q.Get("url"))
	if pageURL == "" {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "missing url parameter"})
		return
	}

	names := parseNetworks(q["networks"])
	if len(names) == 0 {
		names = s.Registry.List()
	}
	if invalid := s.Counters.InvalidNetworks(names); len(invalid) > 0 {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "unknown networks", Invalid: invalid})
		return
	}

	counts := s.Counters.RetrieveCounts(r.Context(), pageURL, names)

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.MaxAge.Seconds())))
	s.writeJSON(w, r, http.StatusOK, counts)
}

// parseNetworks accepts repeated and comma separated values
func parseNetworks(values []string) []string {
	var names []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}
