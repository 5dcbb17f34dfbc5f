package engine

import (
	"context"
	"fmt"
	"time"

	"lighthouse/internal/store"
)

const (
	overdueMediumAfter = 24 * time.Hour
	overdueHighAfter   = 7 * 24 * time.Hour
)

// reconcile is the periodic safety net. Notifications are at-most-once, so
// anything missed during an outage is repaired here: stale classifications,
// stock alerts out of step with the rows, and delivery deadlines that
// passed without any status change to trigger on.
func (e *Engine) reconcile(ctx context.Context) error {
	start := e.now()
	repaired := 0

	items, err := e.st.Inventory().List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile inventory: %w", err)
	}
	for _, item := range items {
		item := item
		err := e.st.RunInTx(ctx, func(tx store.Store) error {
			level := classifyStock(item.CurrentStock, item.SafetyStock)
			if level != item.StockLevel {
				if err := tx.Inventory().SetStockLevel(ctx, item.ID, level); err != nil {
					return err
				}
				repaired++
			}
			_, err := e.evaluateStockAlerts(ctx, tx, item, level)
			return err
		})
		if err != nil {
			e.logger.Error("reconcile item failed", "item_id", item.ID, "error", err)
		}
	}

	if err := e.reconcileDeliveries(ctx); err != nil {
		e.logger.Error("reconcile deliveries failed", "error", err)
	}

	e.logger.Debug("reconcile sweep done",
		"items", len(items), "reclassified", repaired, "took", time.Since(start))
	return nil
}

// reconcileDeliveries raises delivery_overdue for late active orders and
// resolves alerts whose orders completed or are no longer late.
func (e *Engine) reconcileDeliveries(ctx context.Context) error {
	now := e.now()

	active, err := e.st.PurchaseOrders().ListActive(ctx)
	if err != nil {
		return err
	}
	for _, po := range active {
		if po.ExpectedDelivery.IsZero() {
			continue
		}
		late := now.Sub(po.ExpectedDelivery)
		if late < overdueMediumAfter {
			continue
		}
		severity := store.SeverityMedium
		if late >= overdueHighAfter {
			severity = store.SeverityHigh
		}
		po := po
		err := e.st.RunInTx(ctx, func(tx store.Store) error {
			_, err := e.raiseAlert(ctx, tx, store.AlertDeliveryOverdue, severity, nil, &po.ID,
				fmt.Sprintf("order %d from %s overdue by %dd", po.ID, po.Supplier, int(late.Hours()/24)))
			return err
		})
		if err != nil {
			return err
		}
	}

	alerts, err := e.st.Alerts().ListActiveByType(ctx, store.AlertDeliveryOverdue)
	if err != nil {
		return err
	}
	for _, alert := range alerts {
		if alert.POID == nil {
			continue
		}
		po, err := e.st.PurchaseOrders().Get(ctx, *alert.POID)
		if err != nil {
			return err
		}
		stale := po.Status.IsTerminal() ||
			po.ExpectedDelivery.IsZero() ||
			now.Sub(po.ExpectedDelivery) < overdueMediumAfter
		if !stale {
			continue
		}
		if err := e.st.Alerts().Resolve(ctx, alert.ID, now); err != nil {
			return err
		}
		e.logger.Info("alert resolved", "alert_id", alert.ID, "type", store.AlertDeliveryOverdue)
	}
	return nil
}
