package services

import (
	"context"
	"fmt"

	"lighthouse/internal/auth"
	"lighthouse/internal/bridge"
	"lighthouse/internal/config"
	"lighthouse/internal/engine"
	"lighthouse/internal/events"
	"lighthouse/internal/gateway"
	"lighthouse/internal/simulator"
	"lighthouse/internal/store/memory"
	"lighthouse/internal/store/mongo"
	pgstore "lighthouse/internal/store/postgres"
	transportmem "lighthouse/internal/transport/memory"
	pgtransport "lighthouse/internal/transport/postgres"
)

// Init builds the infrastructure and the selected services. Nothing is
// started yet.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.initStorage(ctx); err != nil {
		return err
	}
	if err := m.initAudit(ctx); err != nil {
		return err
	}
	if err := m.initAuth(); err != nil {
		return err
	}

	if m.opts.RunProcessor {
		m.eng = engine.New(m.cfg.Engine, m.tr, m.st, m.audit, m.logger)
		m.logger.Info("initialized processing engine")
	}

	if m.opts.RunGateway {
		stats := &engine.Stats{}
		if m.eng != nil {
			stats = m.eng.Stats()
		}
		m.gw = gateway.NewServer(m.cfg.Gateway, m.st, m.audit, stats, m.authSvc, m.tr, m.logger)
		if m.eng != nil {
			m.eng.AddSink(m.gw.Hub())
		}
		m.logger.Info("initialized gateway", "addr", m.cfg.Gateway.ListenAddr)
	}

	if m.cfg.Bridge.Enabled && m.eng != nil {
		br, err := bridge.New(m.cfg.Bridge, m.logger)
		if err != nil {
			return fmt.Errorf("init bridge: %w", err)
		}
		m.bridge = br
		m.eng.AddSink(br)
		m.logger.Info("initialized event bridge", "url", m.cfg.Bridge.URL)
	}

	if m.opts.RunSimulator {
		m.sim = simulator.New(m.cfg.Simulator, m.st, m.logger)
		m.logger.Info("initialized simulator")
	}

	return nil
}

// initStorage connects the relational store and the notification transport.
// In memory mode the store's notifier hook feeds an in-process bus, standing
// in for the database triggers.
func (m *Manager) initStorage(ctx context.Context) error {
	switch m.cfg.Storage.Mode {
	case config.StorageMemory:
		st := memory.New()
		bus := transportmem.NewBus(events.Channels(), 256)
		st.SetNotifier(func(channel, payload string) {
			if err := bus.Publish(context.Background(), channel, payload); err != nil {
				m.logger.Warn("dropping notification", "channel", channel, "error", err)
			}
		})
		m.st = st
		m.tr = bus
		m.logger.Info("storage ready", "mode", "memory")

	case config.StoragePostgres:
		st, err := pgstore.New(m.cfg.Transport.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		m.st = st
		m.tr = pgtransport.New(m.cfg.Transport, events.Channels(), m.logger)
		m.logger.Info("storage ready", "mode", "postgres")

	default:
		return fmt.Errorf("unknown storage mode %q", m.cfg.Storage.Mode)
	}
	return nil
}

func (m *Manager) initAudit(ctx context.Context) error {
	switch m.cfg.Audit.Mode {
	case config.AuditMemory:
		m.audit = memory.NewAuditStore()
		m.logger.Info("audit trail ready", "mode", "memory")

	case config.AuditMongo:
		audit, err := mongo.NewAuditStore(ctx, m.cfg.Audit.Mongo)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		if err := audit.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure audit indexes: %w", err)
		}
		m.audit = audit
		m.logger.Info("audit trail ready", "mode", "mongo", "database", m.cfg.Audit.Mongo.Database)

	default:
		return fmt.Errorf("unknown audit mode %q", m.cfg.Audit.Mode)
	}
	return nil
}

func (m *Manager) initAuth() error {
	if !m.cfg.Auth.Enabled {
		return nil
	}
	svc, err := auth.NewService(m.cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	m.authSvc = svc
	m.logger.Info("auth enabled", "users", len(m.cfg.Auth.Users))
	return nil
}
