package engine

import (
	"context"
	"errors"
	"fmt"

	"lighthouse/internal/events"
	"lighthouse/internal/store"
)

// classifyStock derives the stock level from the physical quantity.
// LOW at or below safety stock, MEDIUM up to 1.5x safety stock, HIGH above.
func classifyStock(current, safety int64) store.StockLevel {
	if current <= safety {
		return store.StockLow
	}
	if float64(current) <= 1.5*float64(safety) {
		return store.StockMedium
	}
	return store.StockHigh
}

// applyInventoryChange reclassifies the item and re-evaluates the stock
// alerts. The event's quantities describe what changed; the row is the
// source of truth for what the stock is now.
func (e *Engine) applyInventoryChange(ctx context.Context, tx store.Store, ev *events.ChangeEvent) ([]Derived, error) {
	item, err := tx.Inventory().Get(ctx, ev.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("inventory event for unknown item", "item_id", ev.EntityID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var derived []Derived

	level := classifyStock(item.CurrentStock, item.SafetyStock)
	if level != item.StockLevel {
		if err := tx.Inventory().SetStockLevel(ctx, item.ID, level); err != nil {
			return nil, err
		}
		derived = append(derived, Derived{
			Action: "stock_level_set",
			Detail: fmt.Sprintf("item %d %s -> %s", item.ID, item.StockLevel, level),
		})
	}

	d, err := e.evaluateStockAlerts(ctx, tx, item, level)
	if err != nil {
		return nil, err
	}
	return append(derived, d...), nil
}

// evaluateStockAlerts applies the stock alert rules to one item.
//
// stock_out is symmetric: raised at zero, cleared above zero. low_stock has
// hysteresis: raised at LOW but cleared only once the item climbs back to
// HIGH, so an item oscillating around its safety stock doesn't flap.
func (e *Engine) evaluateStockAlerts(ctx context.Context, tx store.Store, item *store.InventoryItem, level store.StockLevel) ([]Derived, error) {
	var derived []Derived

	if item.CurrentStock <= 0 {
		d, err := e.raiseAlert(ctx, tx, store.AlertStockOut, store.SeverityCritical, &item.ID, nil,
			fmt.Sprintf("%s is out of stock at %s", item.Name, item.Location))
		if err != nil {
			return nil, err
		}
		derived = append(derived, d...)
	} else {
		d, err := e.clearAlert(ctx, tx, store.AlertStockOut, &item.ID, nil)
		if err != nil {
			return nil, err
		}
		derived = append(derived, d...)
	}

	switch level {
	case store.StockLow:
		d, err := e.raiseAlert(ctx, tx, store.AlertLowStock, store.SeverityMedium, &item.ID, nil,
			fmt.Sprintf("%s stock %d at or below safety stock %d", item.Name, item.CurrentStock, item.SafetyStock))
		if err != nil {
			return nil, err
		}
		derived = append(derived, d...)
	case store.StockHigh:
		d, err := e.clearAlert(ctx, tx, store.AlertLowStock, &item.ID, nil)
		if err != nil {
			return nil, err
		}
		derived = append(derived, d...)
	}

	d, err := e.evaluateStockoutRisk(ctx, tx, item)
	if err != nil {
		return nil, err
	}
	return append(derived, d...), nil
}

// evaluateStockoutRisk compares the item's latest forecast against its
// current stock. No forecast on file means no risk signal either way.
func (e *Engine) evaluateStockoutRisk(ctx context.Context, tx store.Store, item *store.InventoryItem) ([]Derived, error) {
	forecast, err := tx.Forecasts().LatestForItem(ctx, item.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if forecast.PredictedConsumption > item.CurrentStock {
		return e.raiseAlert(ctx, tx, store.AlertStockoutRisk, store.SeverityHigh, &item.ID, nil,
			fmt.Sprintf("%s forecast consumption %d exceeds current stock %d",
				item.Name, forecast.PredictedConsumption, item.CurrentStock))
	}
	return e.clearAlert(ctx, tx, store.AlertStockoutRisk, &item.ID, nil)
}
