// Package gateway assembles the REST API and the realtime feed into one
// HTTP server.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"lighthouse/internal/auth"
	"lighthouse/internal/engine"
	"lighthouse/internal/gateway/realtime"
	"lighthouse/internal/gateway/rest"
	"lighthouse/internal/store"
	"lighthouse/internal/transport"
)

// Config holds the gateway server settings.
type Config struct {
	Enabled    bool   `yaml:"enabled" env:"LIGHTHOUSE_GATEWAY_ENABLED"`
	ListenAddr string `yaml:"listen_addr" env:"LIGHTHOUSE_GATEWAY_ADDR"`
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, ListenAddr: ":8080"}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
}

// Server hosts the REST handler and the websocket feed.
type Server struct {
	cfg    Config
	hub    *realtime.Hub
	rest   *rest.Handler
	auth   *auth.Service
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	httpSrv *http.Server
	wg      sync.WaitGroup
}

// NewServer wires the gateway. The returned server's Hub must be registered
// as an engine sink for the feed to carry events.
func NewServer(cfg Config, st store.Store, audit store.AuditStore, stats *engine.Stats, authSvc *auth.Service, tr transport.Transport, logger *slog.Logger) *Server {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		hub:    realtime.NewHub(logger),
		rest:   rest.NewHandler(st, audit, stats, authSvc, tr, logger),
		auth:   authSvc,
		logger: logger.With("component", "gateway"),
	}
}

// Hub returns the realtime hub, an engine.Sink.
func (s *Server) Hub() *realtime.Hub { return s.hub }

// feedAuth enforces the bearer token on the websocket upgrade when auth is
// configured. Browser clients cannot set headers on the upgrade request, so
// a token query parameter is accepted as well.
func (s *Server) feedAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.auth == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if _, err := s.auth.Verify(token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Start begins serving. Non-blocking; the listener runs until Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("gateway already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	mux := http.NewServeMux()
	s.rest.RegisterRoutes(mux)
	mux.HandleFunc("GET /v1/feed", s.feedAuth(func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWs(s.hub, w, r)
	}))

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(runCtx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway listener failed", "error", err)
		}
	}()

	s.logger.Info("gateway started", "addr", s.cfg.ListenAddr)
	return nil
}

// Stop shuts the listener down and detaches all feed clients.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	srv := s.httpSrv
	s.mu.Unlock()

	var err error
	if srv != nil {
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("gateway shutdown: %w", shutdownErr)
		}
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
