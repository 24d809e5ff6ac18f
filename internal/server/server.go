// Package server exposes the insights HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/KaramelBytes/flightinsights/internal/pipeline"
)

// Answerer answers a free-text question; failures are part of the text.
type Answerer interface {
	Answer(ctx context.Context, question string) string
}

// Options configures the HTTP surface.
type Options struct {
	IndexPath      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server serves the index page, the insights endpoint and health probes.
type Server struct {
	opts     Options
	answerer Answerer
	outcome  pipeline.Outcome
	log      *slog.Logger
}

// UserQuery is the /insights request body.
type UserQuery struct {
	Query string `json:"query"`
}

// InsightResponse is the /insights response body.
type InsightResponse struct {
	Answer string `json:"answer_fetched"`
}

// New returns a server. answerer may be nil when no cleaned table is
// available; questions are then answered with an error text.
func New(opts Options, answerer Answerer, outcome pipeline.Outcome) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{opts: opts, answerer: answerer, outcome: outcome, log: log}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Get("/", s.handleIndex)
	r.Post("/insights", s.handleInsights)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	content, err := os.ReadFile(s.opts.IndexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Error("index page not found", "path", s.opts.IndexPath)
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Index page not found."})
			return
		}
		s.log.Error("read index page", "path", s.opts.IndexPath, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error."})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var q UserQuery
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&q); err != nil {
		s.log.Warn("malformed insights request", "error", err)
		writeJSON(w, http.StatusOK, InsightResponse{Answer: errorAnswer(fmt.Sprintf("invalid request body: %v", err))})
		return
	}
	s.log.Info("received query", "query", q.Query, "request_id", RequestIDFromContext(r.Context()))
	if s.answerer == nil {
		writeJSON(w, http.StatusOK, InsightResponse{Answer: errorAnswer("cleaned booking data is unavailable")})
		return
	}
	writeJSON(w, http.StatusOK, InsightResponse{Answer: s.answer(r.Context(), q.Query)})
}

// answer shields the response from blank answers and answerer panics.
func (s *Server) answer(ctx context.Context, query string) (ans string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("answerer panicked", "panic", rec, "request_id", RequestIDFromContext(ctx))
			ans = errorAnswer(fmt.Sprintf("internal error: %v", rec))
		}
	}()
	ans = s.answerer.Answer(ctx, query)
	if strings.TrimSpace(ans) == "" {
		return errorAnswer("empty answer")
	}
	return ans
}

func errorAnswer(reason string) string {
	return "An error occurred while fetching the answer. Error: " + reason
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	code := http.StatusOK
	if s.outcome.Status == pipeline.StatusUnavailable || s.outcome.Status == "" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, s.outcome)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
