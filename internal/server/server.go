// Package server serves endpoint workspaces over HTTP. Every block, row and
// value change is a plain form post followed by a redirect, so the pages work
// without client scripts.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/neuroplatform/simforms/internal/config"
	"github.com/neuroplatform/simforms/pkg/apiclient"
	"github.com/neuroplatform/simforms/pkg/blocks"
	"github.com/neuroplatform/simforms/pkg/orchestrator"
	"github.com/neuroplatform/simforms/pkg/renderers/vanilla"
)

const defaultShutdownGrace = 5 * time.Second

// Option customises a Server.
type Option func(*Server)

// WithClient replaces the API client built from the configured API URL.
func WithClient(client *apiclient.Client) Option {
	return func(s *Server) {
		s.client = client
	}
}

// WithOrchestrator replaces the default orchestrator.
func WithOrchestrator(orch *orchestrator.Orchestrator) Option {
	return func(s *Server) {
		s.orch = orch
	}
}

// WithLogger sets the request and pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionStore shares a session store between servers.
func WithSessionStore(store *SessionStore) Option {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithShutdownGrace bounds how long Run waits for in-flight requests.
func WithShutdownGrace(grace time.Duration) Option {
	return func(s *Server) {
		if grace > 0 {
			s.grace = grace
		}
	}
}

// Server is the HTTP front-end of the remote modeling API.
type Server struct {
	cfg      config.Config
	client   *apiclient.Client
	orch     *orchestrator.Orchestrator
	sessions *SessionStore
	pages    *vanilla.Renderer
	logger   *slog.Logger
	now      func() time.Time
	grace    time.Duration
}

// New validates cfg and builds a server, filling missing dependencies with
// defaults derived from cfg.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		grace:  defaultShutdownGrace,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.client == nil {
		s.client = apiclient.New(cfg.APIURL,
			apiclient.WithLogger(s.logger),
			apiclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout.Std()}),
		)
	}
	if s.orch == nil {
		s.orch = orchestrator.New(orchestrator.WithLogger(s.logger))
	}
	if s.sessions == nil {
		s.sessions = NewSessionStore(cfg.PrimaryHostname != "",
			WithIdleTimeout(cfg.SessionIdle.Std()),
			WithStoreClock(s.now),
		)
	}
	pages, err := vanilla.New()
	if err != nil {
		return nil, fmt.Errorf("server: index renderer: %w", err)
	}
	s.pages = pages
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(vanilla.AssetsFS())))
	mux.HandleFunc("GET /config.json", s.handleConfig)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("GET /preview", s.handlePreview)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /forms/{path...}", s.handleForm)
	mux.HandleFunc("POST /values/{path...}", s.handleValues)
	mux.HandleFunc("POST /rows/{path...}", s.handleRows)
	mux.HandleFunc("POST /blocks/{action}/{path...}", s.handleBlocks)
	mux.HandleFunc("POST /generate/{path...}", s.handleGenerate)

	var handler http.Handler = mux
	handler = s.authenticate(mux, handler)
	handler = compress(handler)
	handler = canonicalHost(s.cfg.PrimaryHostname, handler)
	return logRequests(s.logger, handler)
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()
	s.logger.Info("listening", "addr", s.cfg.Addr, "api", s.cfg.APIURL)

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info("stopped")
	return nil
}

// catalog returns the catalog of the cached API document, fetching it on
// first use. refresh forces a new fetch.
func (s *Server) catalog(ctx context.Context, refresh bool) (*orchestrator.Catalog, error) {
	doc, ok := s.client.Cache().Current()
	if !ok || refresh {
		fetched, err := s.client.FetchSpec(ctx)
		if err != nil {
			return nil, err
		}
		doc = fetched
	}
	return s.orch.Catalog(ctx, doc)
}

func (s *Server) workspace(session *Session, catalog *orchestrator.Catalog, path string) (*blocks.Workspace, error) {
	return session.Workspace(catalog.Document().Checksum(), path, func() (*blocks.Workspace, error) {
		return s.orch.NewWorkspace(catalog, path)
	})
}
