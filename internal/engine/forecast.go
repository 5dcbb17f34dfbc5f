package engine

import (
	"context"
	"errors"

	"lighthouse/internal/events"
	"lighthouse/internal/store"
)

// applyForecastUpdate re-evaluates stockout risk for the forecasted item.
// The forecast row itself was written by the producer; this rule only
// derives the alert state from it.
func (e *Engine) applyForecastUpdate(ctx context.Context, tx store.Store, ev *events.ChangeEvent) ([]Derived, error) {
	item, err := tx.Inventory().Get(ctx, ev.Forecast.ItemID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("forecast event for unknown item", "item_id", ev.Forecast.ItemID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e.evaluateStockoutRisk(ctx, tx, item)
}
