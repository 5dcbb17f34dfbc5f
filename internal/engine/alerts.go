package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lighthouse/internal/store"
)

// Derived summarizes one derived write an event produced. The summaries
// flow to the sinks alongside the event itself.
type Derived struct {
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// raiseAlert creates an active alert for (typ, itemID|poID) unless one with
// the same severity already exists. An active alert at a different severity
// is resolved and replaced, so escalations are visible in the alert history.
func (e *Engine) raiseAlert(ctx context.Context, tx store.Store, typ store.AlertType, severity store.AlertSeverity, itemID, poID *int64, message string) ([]Derived, error) {
	existing, err := tx.Alerts().ActiveByKey(ctx, typ, itemID, poID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var derived []Derived
	if existing != nil {
		if existing.Severity == severity {
			return nil, nil
		}
		if err := tx.Alerts().Resolve(ctx, existing.ID, e.now()); err != nil {
			return nil, err
		}
		derived = append(derived, Derived{
			Action: "alert_resolved",
			Detail: fmt.Sprintf("%s alert %d superseded", typ, existing.ID),
		})
	}

	id, err := tx.Alerts().Insert(ctx, &store.Alert{
		Type:     typ,
		Severity: severity,
		ItemID:   itemID,
		POID:     poID,
		Message:  message,
		Status:   store.AlertActive,
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("alert raised",
		"alert_id", id, "type", typ, "severity", severity)
	return append(derived, Derived{
		Action: "alert_raised",
		Detail: fmt.Sprintf("%s/%s alert %d", typ, severity, id),
	}), nil
}

// clearAlert resolves the active alert for (typ, itemID|poID) if one exists.
func (e *Engine) clearAlert(ctx context.Context, tx store.Store, typ store.AlertType, itemID, poID *int64) ([]Derived, error) {
	existing, err := tx.Alerts().ActiveByKey(ctx, typ, itemID, poID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Alerts().Resolve(ctx, existing.ID, e.now()); err != nil {
		return nil, err
	}
	e.logger.Info("alert resolved", "alert_id", existing.ID, "type", typ)
	return []Derived{{
		Action: "alert_resolved",
		Detail: fmt.Sprintf("%s alert %d", typ, existing.ID),
	}}, nil
}

// applyAlertEvent handles alert_generated notifications. Alerts are raised
// by the other rules inside the same process, so the rule's job here is
// bookkeeping only; generating alerts from alert events would loop.
func (e *Engine) applyAlertEvent(ctx context.Context, tx store.Store, alertID int64, alertType, severity string) ([]Derived, error) {
	e.logger.Debug("alert observed", "alert_id", alertID, "type", alertType, "severity", severity)
	if err := tx.Metrics().Record(ctx, "alerts_generated", 1, e.now()); err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now().UTC()
}
