package services

import (
	"context"
)

// Shutdown stops services in reverse start order, then closes the shared
// infrastructure.
func (m *Manager) Shutdown(ctx context.Context) {
	for i := len(m.started) - 1; i >= 0; i-- {
		if err := m.started[i].Stop(ctx); err != nil {
			m.logger.Error("error stopping service", "error", err)
		}
	}
	m.started = nil

	if m.bridge != nil {
		m.bridge.Close()
	}
	if m.tr != nil {
		if err := m.tr.Close(); err != nil {
			m.logger.Error("error closing transport", "error", err)
		}
	}
	if m.audit != nil {
		if err := m.audit.Close(ctx); err != nil {
			m.logger.Error("error closing audit store", "error", err)
		}
	}
	if m.st != nil {
		if err := m.st.Close(); err != nil {
			m.logger.Error("error closing store", "error", err)
		}
	}
	m.logger.Info("shutdown complete")
}
