// Package server exposes the query engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/avelnar/tokensage/common/reqid"
	"github.com/avelnar/tokensage/internal/tokensage/backend"
	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
	"github.com/avelnar/tokensage/internal/tokensage/engine"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server serves the query API.
type Server struct {
	cfg        Config
	engine     *engine.Engine
	client     *backend.Client
	registry   *dispatch.Registry
	router     chi.Router
	httpServer *http.Server
}

// New creates a server over an assembled engine and its backend client.
func New(cfg Config, eng *engine.Engine, client *backend.Client, registry *dispatch.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   eng,
		client:   client,
		registry: registry,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/intents", s.handleIntents)
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "text and userId are required")
		return
	}

	queryID := reqid.New()
	ctx := reqid.WithRequestID(r.Context(), queryID)
	req.Runtime = s.client

	resp := s.engine.ProcessQuery(ctx, req)
	slog.Info("query processed",
		"queryId", queryID, "user", req.UserID,
		"operation", resp.Metadata.OperationExecuted,
		"success", resp.Success, "ms", resp.Metadata.ProcessingTimeMs)

	w.Header().Set("X-Query-ID", queryID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIntents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"intents": s.registry.Intents()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// Start begins listening on the configured address and blocks until the
// listener closes.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	slog.Info("tokensage server listening", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
