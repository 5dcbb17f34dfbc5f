package engine

import (
	"context"
	"errors"
	"fmt"

	"lighthouse/internal/events"
	"lighthouse/internal/store"
)

// poTransitions is the purchase-order lifecycle. Writers propose status
// changes; the advancer is the only authority on whether they stand.
var poTransitions = map[store.POStatus][]store.POStatus{
	store.POCreated:           {store.POApproved, store.POCancelled},
	store.POApproved:          {store.POShipped, store.POCancelled},
	store.POShipped:           {store.POPartiallyReceived, store.POReceived, store.POCancelled},
	store.POPartiallyReceived: {store.POReceived, store.POCancelled},
}

func transitionAllowed(from, to store.POStatus) bool {
	for _, next := range poTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func selfWriteKey(poID int64, from, to store.POStatus) string {
	return fmt.Sprintf("po:%d:%s->%s", poID, from, to)
}

// applyPOChange validates a proposed status transition and, when the order
// completes, posts the received quantities into inventory.
//
// An invalid proposal is reverted in place: the row goes back to the status
// the event reported as old. The revert itself fires another notification;
// the advancer remembers its own writes and swallows that echo.
func (e *Engine) applyPOChange(ctx context.Context, tx store.Store, ev *events.ChangeEvent) ([]Derived, error) {
	oldStatus := store.POStatus(ev.PO.OldStatus)
	newStatus := store.POStatus(ev.PO.NewStatus)

	key := selfWriteKey(ev.EntityID, oldStatus, newStatus)
	if _, ours := e.selfWrites[key]; ours {
		delete(e.selfWrites, key)
		return nil, nil
	}

	po, err := tx.PurchaseOrders().Get(ctx, ev.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("status event for unknown purchase order", "po_id", ev.EntityID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if ev.Origin == events.OriginInsert {
		// New orders enter at created; nothing to validate yet.
		return nil, nil
	}

	if po.Status != newStatus {
		// The row moved on since this notification was emitted.
		e.logger.Debug("stale status event", "po_id", po.ID, "event_status", newStatus, "row_status", po.Status)
		return nil, nil
	}

	switch {
	case oldStatus.IsTerminal():
		return e.revertPO(ctx, tx, po.ID, oldStatus, newStatus,
			fmt.Sprintf("order already %s", oldStatus))
	case !newStatus.IsValid():
		return e.revertPO(ctx, tx, po.ID, oldStatus, newStatus,
			fmt.Sprintf("unknown status %q", newStatus))
	case !transitionAllowed(oldStatus, newStatus):
		return e.revertPO(ctx, tx, po.ID, oldStatus, newStatus,
			fmt.Sprintf("transition %s -> %s not allowed", oldStatus, newStatus))
	}

	var derived []Derived
	if newStatus == store.POReceived {
		d, err := e.postReceipts(ctx, tx, po.ID)
		if err != nil {
			return nil, err
		}
		derived = append(derived, d...)
	}

	if newStatus.IsTerminal() {
		d, err := e.clearAlert(ctx, tx, store.AlertDeliveryOverdue, nil, &po.ID)
		if err != nil {
			return nil, err
		}
		derived = append(derived, d...)
	}
	return derived, nil
}

// revertPO undoes an invalid proposed transition. The write is staged for
// the self-write memory; the dispatcher promotes it once the transaction
// commits, so a rolled-back revert leaves no stale entry behind.
func (e *Engine) revertPO(ctx context.Context, tx store.Store, poID int64, oldStatus, newStatus store.POStatus, reason string) ([]Derived, error) {
	e.logger.Warn("rejecting purchase order transition",
		"po_id", poID, "from", oldStatus, "to", newStatus, "reason", reason)

	if err := tx.PurchaseOrders().SetStatus(ctx, poID, oldStatus); err != nil {
		return nil, err
	}
	e.pendingSelfWrites = append(e.pendingSelfWrites, selfWriteKey(poID, newStatus, oldStatus))
	return []Derived{{
		Action: "transition_rejected",
		Detail: fmt.Sprintf("po %d kept at %s: %s", poID, oldStatus, reason),
	}}, nil
}

// postReceipts books every outstanding ordered quantity into inventory when
// an order reaches received. The stock adjustments fire inventory
// notifications of their own, which re-run classification downstream.
func (e *Engine) postReceipts(ctx context.Context, tx store.Store, poID int64) ([]Derived, error) {
	lines, err := tx.PurchaseOrders().LineItems(ctx, poID)
	if err != nil {
		return nil, err
	}

	var derived []Derived
	for _, line := range lines {
		outstanding := line.QuantityOrdered - line.QuantityReceived
		if outstanding <= 0 {
			continue
		}
		if _, err := tx.Inventory().AdjustStock(ctx, line.ItemID, outstanding); err != nil {
			return nil, fmt.Errorf("post receipt for item %d: %w", line.ItemID, err)
		}
		if err := tx.PurchaseOrders().SetLineReceived(ctx, poID, line.ItemID, line.QuantityOrdered); err != nil {
			return nil, err
		}
		derived = append(derived, Derived{
			Action: "receipt_posted",
			Detail: fmt.Sprintf("po %d item %d +%d", poID, line.ItemID, outstanding),
		})
	}
	return derived, nil
}
