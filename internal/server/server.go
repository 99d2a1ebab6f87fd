// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/odoo-agent/internal/agent"
	"github.com/jeranaias/odoo-agent/internal/events"
)

// Version is reported by /health. Set by the cli package at startup.
var Version = "dev"

// DefaultAddr is the listen address when Config.Addr is empty.
const DefaultAddr = "127.0.0.1:8501"

// maxRuns bounds how many finished runs /runs/:id can return.
const maxRuns = 50

// ErrBusy is returned when an installation is already running.
var ErrBusy = errors.New("an installation is already running")

// Config configures the web front end.
type Config struct {
	Addr          string
	RatePerMinute int
	// GeminiAPIKey is the server-side secret used when the form leaves the key blank.
	GeminiAPIKey string

	// Defaults fill fields the form leaves blank.
	Defaults agent.Request
	// Agent is the base configuration for every run. Sink and GeminiAPIKey
	// are set per request.
	Agent agent.Options

	Logger *slog.Logger
}

// run is a finished installation kept for /runs/:id.
type run struct {
	Report *agent.Report  `json:"report"`
	Events []events.Event `json:"events"`
}

// Server is the web front end.
type Server struct {
	cfg    Config
	logger *slog.Logger
	engine *gin.Engine
	srv    *http.Server

	// installMu allows a single installation at a time.
	installMu sync.Mutex
	busy      atomic.Bool

	mu    sync.RWMutex
	runs  map[string]*run
	order []string
}

// New builds the server and its routes. Nothing listens until Start.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		runs:   make(map[string]*run),
	}
	s.setupRoutes()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New("pages").Funcs(templateFuncs).Parse(pagesTemplate)))
	r.Use(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
	)

	r.GET("/", s.handleIndex)
	r.POST("/install",
		SameOriginMiddleware(s.logger),
		RateLimitMiddleware(NewRateLimiter(s.cfg.RatePerMinute), s.logger),
		s.handleInstall,
	)
	r.GET("/runs/:id", s.handleRun)
	r.GET("/health", s.handleHealth)

	s.engine = r
}

// ============================================================================
// RUN STORE
// ============================================================================

func (s *Server) store(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.Report.RunID
	s.runs[id] = r
	s.order = append(s.order, id)
	if len(s.order) > maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Server) lookup(id string) (*run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok
}

// Install runs one installation with a recording sink. It returns ErrBusy
// without waiting if another installation holds the lock.
func (s *Server) Install(ctx context.Context, req agent.Request, key string) (*agent.Report, []events.Event, error) {
	if !s.installMu.TryLock() {
		return nil, nil, ErrBusy
	}
	defer s.installMu.Unlock()
	s.busy.Store(true)
	defer s.busy.Store(false)

	recorder := events.NewRecorder()
	opts := s.cfg.Agent
	opts.Sink = events.Multi(recorder, events.NewSlogSink(s.logger))
	opts.GeminiAPIKey = key

	if key == "" {
		recorder.Emit(events.Warn("web", "No Gemini API key provided; the Google integration step will fail"))
	}

	report := agent.New(opts).Run(ctx, req)
	captured := recorder.Events()
	s.store(&run{Report: report, Events: captured})
	return report, captured, nil
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Installs download and extract a full source tree.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("server starting", "addr", s.cfg.Addr, "version", Version)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return srv.Shutdown(ctx)
}
