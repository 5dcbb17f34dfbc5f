package services

import (
	"context"
	"fmt"
)

// Start brings the services up: transport first, then the engine, gateway
// and simulator. A failure stops whatever already started.
func (m *Manager) Start(ctx context.Context) error {
	if m.tr != nil && (m.opts.RunProcessor || m.opts.RunGateway) {
		if err := m.tr.Start(ctx); err != nil {
			return fmt.Errorf("start transport: %w", err)
		}
	}

	if m.eng != nil {
		if err := m.startService(ctx, "engine", m.eng); err != nil {
			return err
		}
	}
	if m.gw != nil {
		if err := m.startService(ctx, "gateway", m.gw); err != nil {
			return err
		}
	}
	if m.sim != nil {
		if err := m.startService(ctx, "simulator", m.sim); err != nil {
			return err
		}
	}

	m.logger.Info("all services started",
		"processor", m.eng != nil,
		"gateway", m.gw != nil,
		"simulator", m.sim != nil)
	return nil
}

func (m *Manager) startService(ctx context.Context, name string, svc service) error {
	if err := svc.Start(ctx); err != nil {
		m.stopStarted(ctx)
		return fmt.Errorf("start %s: %w", name, err)
	}
	m.started = append(m.started, svc)
	return nil
}

func (m *Manager) stopStarted(ctx context.Context) {
	for i := len(m.started) - 1; i >= 0; i-- {
		if err := m.started[i].Stop(ctx); err != nil {
			m.logger.Error("error stopping service during rollback", "error", err)
		}
	}
	m.started = nil
}
