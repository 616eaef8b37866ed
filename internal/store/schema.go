package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		barcode TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		price NUMERIC(14,2) NOT NULL CHECK (price >= 0),
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT items_owner_barcode_key UNIQUE (owner_id, barcode)
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		total_purchases INTEGER NOT NULL DEFAULT 0,
		total_spent NUMERIC(14,2) NOT NULL DEFAULT 0,
		last_purchase TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS clients_owner_name_idx ON clients (owner_id, name)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		client_name TEXT NOT NULL,
		subtotal NUMERIC(14,2) NOT NULL,
		tax NUMERIC(14,2) NOT NULL,
		discount NUMERIC(14,2) NOT NULL,
		total NUMERIC(14,2) NOT NULL,
		payment_method TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		compensation TEXT NOT NULL DEFAULT 'none',
		idempotency_key TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cancelled_at TIMESTAMPTZ,
		CONSTRAINT sales_owner_idempotency_key UNIQUE (owner_id, idempotency_key)
	)`,
	`CREATE INDEX IF NOT EXISTS sales_compensation_idx ON sales (compensation) WHERE compensation = 'pending'`,
	`CREATE TABLE IF NOT EXISTS sale_lines (
		id BIGSERIAL PRIMARY KEY,
		sale_id BIGINT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		item_id BIGINT NOT NULL,
		item_name TEXT NOT NULL,
		barcode TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(14,2) NOT NULL,
		line_total NUMERIC(14,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sale_lines_item_idx ON sale_lines (item_id)`,
	`CREATE TABLE IF NOT EXISTS purchase_orders (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		order_number TEXT NOT NULL,
		dealer_name TEXT NOT NULL,
		dealer_contact TEXT NOT NULL DEFAULT '',
		dealer_email TEXT NOT NULL DEFAULT '',
		subtotal NUMERIC(14,2) NOT NULL,
		tax NUMERIC(14,2) NOT NULL,
		shipping_cost NUMERIC(14,2) NOT NULL,
		total_cost NUMERIC(14,2) NOT NULL,
		status TEXT NOT NULL,
		processed_to_inventory BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT '',
		expected_delivery_date TIMESTAMPTZ,
		actual_delivery_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT purchase_orders_owner_number_key UNIQUE (owner_id, order_number),
		CONSTRAINT purchase_orders_processed_check CHECK (processed_to_inventory = (status = 'arrived'))
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_order_lines (
		id BIGSERIAL PRIMARY KEY,
		purchase_order_id BIGINT NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
		item_name TEXT NOT NULL,
		item_barcode TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_cost NUMERIC(14,2) NOT NULL,
		total_cost NUMERIC(14,2) NOT NULL,
		selling_price NUMERIC(14,2) NOT NULL,
		existing_item_id BIGINT,
		is_new_item BOOLEAN NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS purchase_order_lines_item_idx ON purchase_order_lines (existing_item_id)`,
	`CREATE TABLE IF NOT EXISTS reconciliation_issues (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		sale_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		barcode TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
