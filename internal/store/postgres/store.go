// Package postgres implements store.Store on PostgreSQL via lib/pq.
//
// The schema carries the notification triggers: any quantity or status
// change committed through this store (or by any other client) fires
// pg_notify on the corresponding channel, which is what the processor
// listens on.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"lighthouse/internal/store"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db *sql.DB
	q  querier
}

var _ store.Store = (*Store)(nil)

// New opens a connection to dsn and verifies it.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: the processor's transaction and the gateway's reads
	// are serialized on the same handle, matching the single-worker model.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

func (s *Store) Inventory() store.InventoryStore          { return &inventoryStore{q: s.q} }
func (s *Store) PurchaseOrders() store.PurchaseOrderStore { return &poStore{q: s.q} }
func (s *Store) Alerts() store.AlertStore                 { return &alertStore{q: s.q} }
func (s *Store) Forecasts() store.ForecastStore           { return &forecastStore{q: s.q} }
func (s *Store) Metrics() store.MetricStore               { return &metricStore{q: s.q} }

// RunInTx runs fn against a transaction-bound view of the store. Every
// write fn makes through the view commits atomically or not at all.
// Notifications from triggers are delivered only on commit.
func (s *Store) RunInTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	view := &Store{db: s.db, q: tx}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates tables, indexes and notification triggers if they
// don't exist. Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{tableDDL, triggerFnDDL, triggerDDL}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const tableDDL = `
CREATE TABLE IF NOT EXISTS inventory (
    item_id        BIGSERIAL PRIMARY KEY,
    item_name      VARCHAR(255) NOT NULL,
    current_stock  BIGINT NOT NULL DEFAULT 0,
    safety_stock   BIGINT NOT NULL DEFAULT 0,
    location       VARCHAR(255) NOT NULL DEFAULT '',
    stock_level    VARCHAR(16) NOT NULL DEFAULT 'HIGH',
    last_updated   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS purchase_orders (
    po_id              BIGSERIAL PRIMARY KEY,
    supplier           VARCHAR(255) NOT NULL,
    status             VARCHAR(32) NOT NULL DEFAULT 'created',
    created_date       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expected_delivery  TIMESTAMPTZ,
    total_value        DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS po_line_items (
    po_id              BIGINT NOT NULL REFERENCES purchase_orders(po_id),
    item_id            BIGINT NOT NULL REFERENCES inventory(item_id),
    quantity_ordered   BIGINT NOT NULL,
    quantity_received  BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (po_id, item_id)
);

CREATE TABLE IF NOT EXISTS alerts (
    alert_id     BIGSERIAL PRIMARY KEY,
    alert_type   VARCHAR(32) NOT NULL,
    severity     VARCHAR(16) NOT NULL,
    item_id      BIGINT REFERENCES inventory(item_id),
    po_id        BIGINT REFERENCES purchase_orders(po_id),
    message      TEXT NOT NULL DEFAULT '',
    status       VARCHAR(16) NOT NULL DEFAULT 'active',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS forecasts (
    forecast_id            BIGSERIAL PRIMARY KEY,
    item_id                BIGINT NOT NULL REFERENCES inventory(item_id),
    forecast_date          DATE NOT NULL,
    predicted_consumption  BIGINT NOT NULL,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS system_metrics (
    metric_id     BIGSERIAL PRIMARY KEY,
    metric_name   VARCHAR(64) NOT NULL,
    metric_value  DOUBLE PRECISION NOT NULL,
    recorded_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(alert_type, item_id, po_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_po_status ON purchase_orders(status);
CREATE INDEX IF NOT EXISTS idx_forecasts_item ON forecasts(item_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_metrics_name ON system_metrics(metric_name, recorded_at DESC);
`

// Trigger functions fire only on real changes: an UPDATE that leaves the
// quantity or status untouched stays silent.
const triggerFnDDL = `
CREATE OR REPLACE FUNCTION notify_inventory_change() RETURNS trigger AS $$
BEGIN
    IF TG_OP = 'INSERT' OR NEW.current_stock IS DISTINCT FROM OLD.current_stock THEN
        PERFORM pg_notify('inventory_changed', json_build_object(
            'item_id', NEW.item_id,
            'old_quantity', CASE WHEN TG_OP = 'INSERT' THEN 0 ELSE OLD.current_stock END,
            'new_quantity', NEW.current_stock,
            'change_type', TG_OP,
            'timestamp', to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
        )::text);
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION notify_po_status_change() RETURNS trigger AS $$
BEGIN
    IF TG_OP = 'INSERT' OR NEW.status IS DISTINCT FROM OLD.status THEN
        PERFORM pg_notify('po_status_changed', json_build_object(
            'po_id', NEW.po_id,
            'old_status', CASE WHEN TG_OP = 'INSERT' THEN '' ELSE OLD.status END,
            'new_status', NEW.status,
            'change_type', TG_OP,
            'timestamp', to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
        )::text);
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION notify_alert_generated() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('alert_generated', json_build_object(
        'alert_id', NEW.alert_id,
        'alert_type', NEW.alert_type,
        'severity', NEW.severity,
        'item_id', NEW.item_id,
        'po_id', NEW.po_id,
        'timestamp', to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
    )::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION notify_forecast_updated() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('forecast_updated', json_build_object(
        'forecast_id', NEW.forecast_id,
        'item_id', NEW.item_id,
        'forecast_date', to_char(NEW.forecast_date, 'YYYY-MM-DD'),
        'predicted_consumption', NEW.predicted_consumption,
        'timestamp', to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
    )::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;
`

const triggerDDL = `
DROP TRIGGER IF EXISTS trg_inventory_notify ON inventory;
CREATE TRIGGER trg_inventory_notify
    AFTER INSERT OR UPDATE ON inventory
    FOR EACH ROW EXECUTE FUNCTION notify_inventory_change();

DROP TRIGGER IF EXISTS trg_po_notify ON purchase_orders;
CREATE TRIGGER trg_po_notify
    AFTER INSERT OR UPDATE ON purchase_orders
    FOR EACH ROW EXECUTE FUNCTION notify_po_status_change();

DROP TRIGGER IF EXISTS trg_alert_notify ON alerts;
CREATE TRIGGER trg_alert_notify
    AFTER INSERT ON alerts
    FOR EACH ROW EXECUTE FUNCTION notify_alert_generated();

DROP TRIGGER IF EXISTS trg_forecast_notify ON forecasts;
CREATE TRIGGER trg_forecast_notify
    AFTER INSERT OR UPDATE ON forecasts
    FOR EACH ROW EXECUTE FUNCTION notify_forecast_updated();
`

// --- inventory ---

type inventoryStore struct {
	q querier
}

const inventoryColumns = `item_id, item_name, current_stock, safety_stock, location, stock_level, last_updated`

func (s *inventoryStore) Get(ctx context.Context, id int64) (*store.InventoryItem, error) {
	return scanItem(s.q.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+` FROM inventory WHERE item_id = $1
	`, id))
}

func (s *inventoryStore) List(ctx context.Context) ([]*store.InventoryItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+inventoryColumns+` FROM inventory ORDER BY item_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*store.InventoryItem
	for rows.Next() {
		var item store.InventoryItem
		if err := rows.Scan(&item.ID, &item.Name, &item.CurrentStock, &item.SafetyStock,
			&item.Location, &item.StockLevel, &item.LastUpdated); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *inventoryStore) SetStockLevel(ctx context.Context, id int64, level store.StockLevel) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE inventory SET stock_level = $1, last_updated = NOW() WHERE item_id = $2
	`, string(level), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *inventoryStore) SetStock(ctx context.Context, id int64, quantity int64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE inventory SET current_stock = $1, last_updated = NOW() WHERE item_id = $2
	`, quantity, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *inventoryStore) AdjustStock(ctx context.Context, id int64, delta int64) (int64, error) {
	var quantity int64
	err := s.q.QueryRowContext(ctx, `
		UPDATE inventory SET current_stock = current_stock + $1, last_updated = NOW()
		WHERE item_id = $2
		RETURNING current_stock
	`, delta, id).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	return quantity, err
}

func (s *inventoryStore) Create(ctx context.Context, item *store.InventoryItem) error {
	level := item.StockLevel
	if level == "" {
		level = store.StockHigh
	}
	return s.q.QueryRowContext(ctx, `
		INSERT INTO inventory (item_name, current_stock, safety_stock, location, stock_level)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING item_id, last_updated
	`, item.Name, item.CurrentStock, item.SafetyStock, item.Location, string(level)).
		Scan(&item.ID, &item.LastUpdated)
}

func scanItem(row *sql.Row) (*store.InventoryItem, error) {
	var item store.InventoryItem
	err := row.Scan(&item.ID, &item.Name, &item.CurrentStock, &item.SafetyStock,
		&item.Location, &item.StockLevel, &item.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- purchase orders ---

type poStore struct {
	q querier
}

const poColumns = `po_id, supplier, status, created_date, expected_delivery, total_value`

func (s *poStore) Get(ctx context.Context, id int64) (*store.PurchaseOrder, error) {
	return scanPO(s.q.QueryRowContext(ctx, `
		SELECT `+poColumns+` FROM purchase_orders WHERE po_id = $1
	`, id))
}

func (s *poStore) ListActive(ctx context.Context) ([]*store.PurchaseOrder, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+poColumns+` FROM purchase_orders
		WHERE status NOT IN ('received', 'cancelled')
		ORDER BY po_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pos []*store.PurchaseOrder
	for rows.Next() {
		po, err := scanPORow(rows)
		if err != nil {
			return nil, err
		}
		pos = append(pos, po)
	}
	return pos, rows.Err()
}

func (s *poStore) SetStatus(ctx context.Context, id int64, status store.POStatus) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE purchase_orders SET status = $1 WHERE po_id = $2
	`, string(status), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *poStore) LineItems(ctx context.Context, poID int64) ([]*store.POLineItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT po_id, item_id, quantity_ordered, quantity_received
		FROM po_line_items WHERE po_id = $1 ORDER BY item_id
	`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*store.POLineItem
	for rows.Next() {
		var l store.POLineItem
		if err := rows.Scan(&l.POID, &l.ItemID, &l.QuantityOrdered, &l.QuantityReceived); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

func (s *poStore) SetLineReceived(ctx context.Context, poID, itemID, quantity int64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE po_line_items SET quantity_received = $1 WHERE po_id = $2 AND item_id = $3
	`, quantity, poID, itemID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *poStore) Create(ctx context.Context, po *store.PurchaseOrder, lines []*store.POLineItem) error {
	status := po.Status
	if status == "" {
		status = store.POCreated
	}
	var expected *time.Time
	if !po.ExpectedDelivery.IsZero() {
		expected = &po.ExpectedDelivery
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO purchase_orders (supplier, status, expected_delivery, total_value)
		VALUES ($1, $2, $3, $4)
		RETURNING po_id, created_date
	`, po.Supplier, string(status), expected, po.TotalValue).Scan(&po.ID, &po.CreatedDate)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO po_line_items (po_id, item_id, quantity_ordered, quantity_received)
			VALUES ($1, $2, $3, $4)
		`, po.ID, l.ItemID, l.QuantityOrdered, l.QuantityReceived); err != nil {
			return err
		}
	}
	return nil
}

func scanPO(row *sql.Row) (*store.PurchaseOrder, error) {
	var po store.PurchaseOrder
	var expected sql.NullTime
	err := row.Scan(&po.ID, &po.Supplier, &po.Status, &po.CreatedDate, &expected, &po.TotalValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expected.Valid {
		po.ExpectedDelivery = expected.Time
	}
	return &po, nil
}

func scanPORow(rows *sql.Rows) (*store.PurchaseOrder, error) {
	var po store.PurchaseOrder
	var expected sql.NullTime
	if err := rows.Scan(&po.ID, &po.Supplier, &po.Status, &po.CreatedDate, &expected, &po.TotalValue); err != nil {
		return nil, err
	}
	if expected.Valid {
		po.ExpectedDelivery = expected.Time
	}
	return &po, nil
}

// --- alerts ---

type alertStore struct {
	q querier
}

const alertColumns = `alert_id, alert_type, severity, item_id, po_id, message, status, created_at, resolved_at`

func (s *alertStore) Get(ctx context.Context, id int64) (*store.Alert, error) {
	return scanAlert(s.q.QueryRowContext(ctx, `
		SELECT `+alertColumns+` FROM alerts WHERE alert_id = $1
	`, id))
}

func (s *alertStore) ActiveByKey(ctx context.Context, typ store.AlertType, itemID, poID *int64) (*store.Alert, error) {
	return scanAlert(s.q.QueryRowContext(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE status = 'active' AND alert_type = $1
		  AND item_id IS NOT DISTINCT FROM $2
		  AND po_id IS NOT DISTINCT FROM $3
		ORDER BY alert_id LIMIT 1
	`, string(typ), itemID, poID))
}

func (s *alertStore) ListActiveByType(ctx context.Context, typ store.AlertType) ([]*store.Alert, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE status = 'active' AND alert_type = $1
		ORDER BY alert_id
	`, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (s *alertStore) List(ctx context.Context, filter store.AlertFilter) ([]*store.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND alert_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (s *alertStore) Insert(ctx context.Context, alert *store.Alert) (int64, error) {
	status := alert.Status
	if status == "" {
		status = store.AlertActive
	}
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO alerts (alert_type, severity, item_id, po_id, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING alert_id
	`, string(alert.Type), string(alert.Severity), alert.ItemID, alert.POID,
		alert.Message, string(status)).Scan(&id)
	return id, err
}

func (s *alertStore) Resolve(ctx context.Context, id int64, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = $1
		WHERE alert_id = $2 AND status = 'active'
	`, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanAlert(row *sql.Row) (*store.Alert, error) {
	var a store.Alert
	var itemID, poID sql.NullInt64
	var resolvedAt sql.NullTime
	err := row.Scan(&a.ID, &a.Type, &a.Severity, &itemID, &poID, &a.Message,
		&a.Status, &a.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	applyAlertNulls(&a, itemID, poID, resolvedAt)
	return &a, nil
}

func collectAlerts(rows *sql.Rows) ([]*store.Alert, error) {
	var alerts []*store.Alert
	for rows.Next() {
		var a store.Alert
		var itemID, poID sql.NullInt64
		var resolvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &itemID, &poID, &a.Message,
			&a.Status, &a.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		applyAlertNulls(&a, itemID, poID, resolvedAt)
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func applyAlertNulls(a *store.Alert, itemID, poID sql.NullInt64, resolvedAt sql.NullTime) {
	if itemID.Valid {
		v := itemID.Int64
		a.ItemID = &v
	}
	if poID.Valid {
		v := poID.Int64
		a.POID = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
}

// --- forecasts ---

type forecastStore struct {
	q querier
}

func (s *forecastStore) Get(ctx context.Context, id int64) (*store.Forecast, error) {
	var f store.Forecast
	err := s.q.QueryRowContext(ctx, `
		SELECT forecast_id, item_id, forecast_date, predicted_consumption, created_at
		FROM forecasts WHERE forecast_id = $1
	`, id).Scan(&f.ID, &f.ItemID, &f.ForecastDate, &f.PredictedConsumption, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *forecastStore) Upsert(ctx context.Context, f *store.Forecast) (int64, error) {
	if f.ID != 0 {
		_, err := s.q.ExecContext(ctx, `
			UPDATE forecasts SET forecast_date = $1, predicted_consumption = $2
			WHERE forecast_id = $3
		`, f.ForecastDate, f.PredictedConsumption, f.ID)
		return f.ID, err
	}
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO forecasts (item_id, forecast_date, predicted_consumption)
		VALUES ($1, $2, $3)
		RETURNING forecast_id
	`, f.ItemID, f.ForecastDate, f.PredictedConsumption).Scan(&id)
	if err == nil {
		f.ID = id
	}
	return id, err
}

func (s *forecastStore) LatestForItem(ctx context.Context, itemID int64) (*store.Forecast, error) {
	var f store.Forecast
	err := s.q.QueryRowContext(ctx, `
		SELECT forecast_id, item_id, forecast_date, predicted_consumption, created_at
		FROM forecasts WHERE item_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, itemID).Scan(&f.ID, &f.ItemID, &f.ForecastDate, &f.PredictedConsumption, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// --- metrics ---

type metricStore struct {
	q querier
}

func (s *metricStore) Record(ctx context.Context, name string, value float64, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO system_metrics (metric_name, metric_value, recorded_at)
		VALUES ($1, $2, $3)
	`, name, value, at)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
