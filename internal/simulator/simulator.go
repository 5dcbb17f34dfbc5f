// Package simulator generates synthetic procurement activity. All writes go
// through the store, so the change triggers (or the in-memory notifier)
// produce the same notification stream real activity would.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"lighthouse/internal/store"
)

// Config holds the simulator settings.
type Config struct {
	Enabled           bool          `yaml:"enabled" env:"LIGHTHOUSE_SIM_ENABLED"`
	InventoryInterval time.Duration `yaml:"inventory_interval" env:"LIGHTHOUSE_SIM_INVENTORY_INTERVAL"`
	POInterval        time.Duration `yaml:"po_interval" env:"LIGHTHOUSE_SIM_PO_INTERVAL"`
	ForecastInterval  time.Duration `yaml:"forecast_interval" env:"LIGHTHOUSE_SIM_FORECAST_INTERVAL"`
	SeedItems         int           `yaml:"seed_items" env:"LIGHTHOUSE_SIM_SEED_ITEMS"`
}

// DefaultConfig returns the simulator defaults.
func DefaultConfig() Config {
	return Config{
		InventoryInterval: 5 * time.Second,
		POInterval:        15 * time.Second,
		ForecastInterval:  30 * time.Second,
		SeedItems:         12,
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.InventoryInterval <= 0 {
		c.InventoryInterval = def.InventoryInterval
	}
	if c.POInterval <= 0 {
		c.POInterval = def.POInterval
	}
	if c.ForecastInterval <= 0 {
		c.ForecastInterval = def.ForecastInterval
	}
	if c.SeedItems <= 0 {
		c.SeedItems = def.SeedItems
	}
}

var suppliers = []string{
	"Acme Steel Supply", "Metro Materials", "Industrial Parts Co",
	"Quality Components", "Reliable Suppliers Inc", "Prime Manufacturing",
	"Global Parts Ltd", "Precision Tools Corp", "Standard Supply Co",
}

var itemNames = []string{
	"Hex Bolt M8", "Bearing 6204", "Hydraulic Seal", "Drive Belt A42",
	"Copper Wire 2.5mm", "Steel Plate 3mm", "Air Filter F200", "Gasket Set",
	"Proximity Sensor", "Relay 24V", "Lubricant Grade 2", "Coupling Sleeve",
}

// Simulator drives random inventory consumption, receipts, purchase-order
// lifecycle advances and forecast updates against the store.
type Simulator struct {
	cfg    Config
	st     store.Store
	logger *slog.Logger
	rng    *rand.Rand

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a simulator over the given store.
func New(cfg Config, st store.Store, logger *slog.Logger) *Simulator {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		cfg:    cfg,
		st:     st,
		logger: logger.With("component", "simulator"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start seeds the catalog if empty and begins the activity loops.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("simulator already started")
	}

	if err := s.seed(ctx); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()

	s.logger.Info("simulator started",
		"inventory_interval", s.cfg.InventoryInterval,
		"po_interval", s.cfg.POInterval)
	return nil
}

// Stop halts the activity loops.
func (s *Simulator) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// seed creates a starter catalog when the inventory table is empty.
func (s *Simulator) seed(ctx context.Context) error {
	items, err := s.st.Inventory().List(ctx)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		return nil
	}

	n := s.cfg.SeedItems
	if n > len(itemNames) {
		n = len(itemNames)
	}
	for i := 0; i < n; i++ {
		safety := int64(10 + s.rng.Intn(40))
		item := &store.InventoryItem{
			Name:         itemNames[i],
			CurrentStock: safety * int64(2+s.rng.Intn(3)),
			SafetyStock:  safety,
			Location:     fmt.Sprintf("A%02d-%d", i+1, 1+s.rng.Intn(4)),
			StockLevel:   store.StockHigh,
		}
		if err := s.st.Inventory().Create(ctx, item); err != nil {
			return err
		}
	}
	s.logger.Info("seeded inventory catalog", "items", n)
	return nil
}

func (s *Simulator) run(ctx context.Context) {
	invTicker := time.NewTicker(s.cfg.InventoryInterval)
	poTicker := time.NewTicker(s.cfg.POInterval)
	fcTicker := time.NewTicker(s.cfg.ForecastInterval)
	defer invTicker.Stop()
	defer poTicker.Stop()
	defer fcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-invTicker.C:
			if err := s.inventoryEvent(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("inventory event failed", "error", err)
			}
		case <-poTicker.C:
			if err := s.purchaseOrderEvent(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("purchase order event failed", "error", err)
			}
		case <-fcTicker.C:
			if err := s.forecastEvent(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("forecast event failed", "error", err)
			}
		}
	}
}

// inventoryEvent consumes, receives or adjusts stock on a random item.
// Consumption dominates, matching real plant activity.
func (s *Simulator) inventoryEvent(ctx context.Context) error {
	items, err := s.st.Inventory().List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	item := items[s.rng.Intn(len(items))]

	var delta int64
	switch roll := s.rng.Float64(); {
	case roll < 0.7: // consumption
		if item.CurrentStock <= 1 {
			return nil
		}
		max := int64(20)
		if avail := item.CurrentStock - 1; avail < max {
			max = avail
		}
		delta = -(1 + s.rng.Int63n(max))
	case roll < 0.9: // receipt outside the PO flow
		delta = 10 + s.rng.Int63n(91)
	default: // cycle count adjustment
		delta = s.rng.Int63n(21) - 10
		if item.CurrentStock+delta < 0 {
			delta = -item.CurrentStock
		}
		if delta == 0 {
			return nil
		}
	}

	after, err := s.st.Inventory().AdjustStock(ctx, item.ID, delta)
	if err != nil {
		return err
	}
	s.logger.Debug("stock adjusted", "item", item.Name, "delta", delta, "stock", after)
	return nil
}

// purchaseOrderEvent either raises a new PO for low-running items or advances
// an active one. A small fraction of advances propose an illegal transition
// so the rejection path sees live traffic.
func (s *Simulator) purchaseOrderEvent(ctx context.Context) error {
	if s.rng.Float64() < 0.3 {
		return s.createPurchaseOrder(ctx)
	}
	return s.advancePurchaseOrder(ctx)
}

func (s *Simulator) createPurchaseOrder(ctx context.Context) error {
	items, err := s.st.Inventory().List(ctx)
	if err != nil {
		return err
	}
	var low []*store.InventoryItem
	for _, it := range items {
		if it.CurrentStock <= it.SafetyStock*3/2 {
			low = append(low, it)
		}
	}
	if len(low) == 0 {
		return nil
	}

	n := 1 + s.rng.Intn(3)
	if n > len(low) {
		n = len(low)
	}
	s.rng.Shuffle(len(low), func(i, j int) { low[i], low[j] = low[j], low[i] })

	var lines []*store.POLineItem
	var total float64
	for _, it := range low[:n] {
		qty := it.SafetyStock*2 + s.rng.Int63n(it.SafetyStock+1)
		lines = append(lines, &store.POLineItem{ItemID: it.ID, QuantityOrdered: qty})
		total += float64(qty) * (1 + s.rng.Float64()*24)
	}

	po := &store.PurchaseOrder{
		Supplier:         suppliers[s.rng.Intn(len(suppliers))],
		Status:           store.POCreated,
		ExpectedDelivery: time.Now().AddDate(0, 0, 5+s.rng.Intn(10)),
		TotalValue:       total,
	}
	if err := s.st.PurchaseOrders().Create(ctx, po, lines); err != nil {
		return err
	}
	s.logger.Info("purchase order created", "po_id", po.ID, "supplier", po.Supplier, "lines", len(lines))
	return nil
}

// nextStatus returns the lifecycle step the simulator proposes. Roughly one
// proposal in twenty is deliberately out of order.
func (s *Simulator) nextStatus(current store.POStatus) (store.POStatus, bool) {
	if s.rng.Float64() < 0.05 {
		// Skip ahead or move backwards; the engine reverts these.
		switch current {
		case store.POCreated:
			return store.POReceived, true
		case store.POApproved:
			return store.POCreated, true
		default:
			return store.POApproved, true
		}
	}
	switch current {
	case store.POCreated:
		return store.POApproved, true
	case store.POApproved:
		return store.POShipped, true
	case store.POShipped:
		if s.rng.Float64() < 0.25 {
			return store.POPartiallyReceived, true
		}
		return store.POReceived, true
	case store.POPartiallyReceived:
		return store.POReceived, true
	default:
		return "", false
	}
}

func (s *Simulator) advancePurchaseOrder(ctx context.Context) error {
	active, err := s.st.PurchaseOrders().ListActive(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}
	po := active[s.rng.Intn(len(active))]
	next, ok := s.nextStatus(po.Status)
	if !ok {
		return nil
	}
	if err := s.st.PurchaseOrders().SetStatus(ctx, po.ID, next); err != nil {
		return err
	}
	s.logger.Info("purchase order advanced", "po_id", po.ID, "from", po.Status, "to", next)
	return nil
}

// forecastEvent records a synthetic consumption forecast for a random item.
func (s *Simulator) forecastEvent(ctx context.Context) error {
	items, err := s.st.Inventory().List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	item := items[s.rng.Intn(len(items))]

	// Center the prediction on current stock so both risk and no-risk
	// outcomes occur.
	base := item.CurrentStock
	if base < 10 {
		base = 10
	}
	predicted := base/2 + s.rng.Int63n(base+1)

	f := &store.Forecast{
		ItemID:               item.ID,
		ForecastDate:         time.Now().AddDate(0, 0, 1),
		PredictedConsumption: predicted,
	}
	if _, err := s.st.Forecasts().Upsert(ctx, f); err != nil {
		return err
	}
	s.logger.Debug("forecast recorded", "item", item.Name, "predicted", predicted)
	return nil
}
