// Package dbtest opens throwaway SQLite databases carrying the same tables
// the goose migrations create in Postgres.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/angkor-storefront/pkg/db"
)

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		price_cents INTEGER NOT NULL,
		compare_at_price_cents INTEGER,
		cost_price_cents INTEGER,
		has_variants BOOLEAN NOT NULL DEFAULT 0,
		track_inventory BOOLEAN NOT NULL DEFAULT 1,
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		stock_status TEXT NOT NULL DEFAULT 'in_stock',
		low_stock_threshold INTEGER NOT NULL DEFAULT 5,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_variants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		sku TEXT NOT NULL UNIQUE,
		options TEXT NOT NULL DEFAULT '[]',
		override_price_cents INTEGER,
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		is_default BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX idx_product_variants_product ON product_variants(product_id)`,
	`CREATE TABLE specification_attributes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		unit TEXT,
		data_type TEXT NOT NULL,
		allowed_values TEXT,
		is_filterable BOOLEAN NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE specifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attribute_id INTEGER NOT NULL REFERENCES specification_attributes(id),
		product_id INTEGER REFERENCES products(id) ON DELETE CASCADE,
		variant_id INTEGER REFERENCES product_variants(id) ON DELETE CASCADE,
		value_text TEXT,
		value_number NUMERIC,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_specifications_product_attr ON specifications(product_id, attribute_id) WHERE variant_id IS NULL`,
	`CREATE UNIQUE INDEX ux_specifications_variant_attr ON specifications(variant_id, attribute_id) WHERE variant_id IS NOT NULL`,
	`CREATE TABLE addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		house_number TEXT,
		street TEXT,
		commune TEXT NOT NULL,
		district TEXT NOT NULL,
		province TEXT NOT NULL,
		postal_code TEXT,
		is_default BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_addresses_default_per_type ON addresses(user_id, type) WHERE is_default`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		currency TEXT NOT NULL,
		subtotal_cents INTEGER NOT NULL,
		shipping_cents INTEGER NOT NULL DEFAULT 0,
		grand_total_cents INTEGER NOT NULL,
		shipping_address_id INTEGER,
		payment_data TEXT,
		paid_at DATETIME,
		stock_committed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL,
		variant_id INTEGER,
		name TEXT NOT NULL,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		total_cents INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id),
		transaction_id TEXT NOT NULL UNIQUE,
		gateway TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		gateway_status TEXT,
		status TEXT NOT NULL,
		raw_response TEXT,
		received_at DATETIME,
		processed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE UNIQUE INDEX ux_outbox_events_order_paid ON outbox_events(event_type, aggregate_type, aggregate_id) WHERE event_type = 'order_paid'`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh in-memory database with the full schema applied. Each
// call gets its own database so tests never observe each other's rows.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// OpenClient is Open wrapped in the transactional db.Client.
func OpenClient(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.Wrap(conn), conn
}
