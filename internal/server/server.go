// Package server exposes toolify over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolify/app"
	"github.com/jonwraymond/toolify/health"
	"github.com/jonwraymond/toolify/observe"
)

// Server serves the tool assistant API alongside health, metrics and key
// pool state.
type Server struct {
	app    *app.App
	router *chi.Mux
	server *http.Server
}

// New creates a server for a. Routes:
//
//	GET /healthz, /readyz, /health, /health/{name}
//	GET /metrics
//	GET /keys
//	POST /api/chat, /api/recognize-tool, /api/transcribe
//	POST /api/generate-manual, /api/generate-safety-guide, /api/generate-quick-summary
//
// All API routes share the app's key pool. They require a bearer JWT when
// the app has an authenticator.
func New(a *app.App) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.Logger()))
	r.Use(middleware.Recoverer)

	s := &Server{app: a, router: r}

	health.RegisterHandlers(r, a.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	r.Get("/keys", s.handleKeys)
	r.Route("/api", func(r chi.Router) {
		if a.Auth != nil {
			r.Use(requireAuth(a.Auth))
		}
		s.mountAPI(r)
	})

	cfg := a.Config.Server
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Run serves until ctx is cancelled, then shuts down within the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	logger := s.app.Logger()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(ctx, "server listening", observe.Field{Key: "addr", Value: s.server.Addr})
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := s.app.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logger.Info(shutdownCtx, "server shutting down")
		return s.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type keysResponse struct {
	Cooldown string          `json:"cooldown"`
	Active   int             `json:"active"`
	Keys     []app.KeyReport `json:"keys"`
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	reports, err := s.app.Keys(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, keysResponse{
		Cooldown: s.app.Pool.Cooldown().String(),
		Active:   s.app.Pool.Status().ActiveCount(),
		Keys:     reports,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug(r.Context(), "http request",
				observe.Field{Key: "method", Value: r.Method},
				observe.Field{Key: "path", Value: r.URL.Path},
				observe.Field{Key: "status", Value: ww.Status()},
				observe.Field{Key: "duration_ms", Value: float64(time.Since(start).Milliseconds())},
				observe.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())},
			)
		})
	}
}
