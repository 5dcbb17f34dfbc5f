// Package services assembles the processor, gateway and simulator into a
// running application.
package services

import (
	"context"
	"log/slog"
	"sync"

	"lighthouse/internal/auth"
	"lighthouse/internal/bridge"
	"lighthouse/internal/config"
	"lighthouse/internal/engine"
	"lighthouse/internal/gateway"
	"lighthouse/internal/simulator"
	"lighthouse/internal/store"
	"lighthouse/internal/transport"
)

// Options selects which services this process runs.
type Options struct {
	RunProcessor bool
	RunGateway   bool
	RunSimulator bool
}

// Manager owns the shared infrastructure and the service lifecycles.
type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	st      store.Store
	audit   store.AuditStore
	tr      transport.Transport
	authSvc *auth.Service

	eng     *engine.Engine
	gw      *gateway.Server
	bridge  *bridge.Bridge
	sim     *simulator.Simulator
	started []service

	wg sync.WaitGroup
}

// service is the common lifecycle the manager drives.
type service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NewManager creates a manager; Init must run before Start.
func NewManager(cfg *config.Config, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: logger.With("component", "services"),
	}
}

// Engine exposes the processing engine, nil unless RunProcessor.
func (m *Manager) Engine() *engine.Engine { return m.eng }

// Store exposes the relational store.
func (m *Manager) Store() store.Store { return m.st }
