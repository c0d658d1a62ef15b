// Package testdb opens isolated in-memory sqlite databases carrying the
// HomeCheff schema. It is imported by tests only.
package testdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  role TEXT NOT NULL,
  stripe_connect_account_id TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE seller_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE workplace_photos (
  id TEXT PRIMARY KEY,
  seller_profile_id TEXT NOT NULL,
  url TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE delivery_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  total_deliveries INTEGER NOT NULL DEFAULT 0,
  total_earnings_cents INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  seller_id TEXT,
  seller_profile_id TEXT,
  title TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE product_images (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  url TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE favorites (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  shipping_status TEXT,
  shipped_at DATETIME,
  delivered_at DATETIME,
  shipping_tracking_number TEXT,
  shipping_label_id TEXT,
  delivery_mode TEXT NOT NULL,
  total_amount_cents INTEGER NOT NULL,
  stripe_session_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL
);`,
	`CREATE TABLE payment_escrows (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL DEFAULT 0,
  payout_trigger TEXT NOT NULL,
  current_status TEXT NOT NULL,
  paid_out_at DATETIME,
  last_error TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE shipping_labels (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  carrier_label_id TEXT NOT NULL UNIQUE,
  tracking_number TEXT,
  pdf_url TEXT,
  carrier TEXT NOT NULL,
  status TEXT NOT NULL,
  price_cents INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE delivery_orders (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  delivery_profile_id TEXT NOT NULL,
  status TEXT NOT NULL,
  picked_up_at DATETIME,
  delivered_at DATETIME,
  actual_delivery_time_minutes INTEGER,
  delivery_fee_cents INTEGER NOT NULL,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE payouts (
  id TEXT PRIMARY KEY,
  to_user_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  order_id TEXT,
  escrow_id TEXT UNIQUE,
  delivery_order_id TEXT UNIQUE,
  kind TEXT NOT NULL,
  provider_ref TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE product_reviews (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  order_id TEXT,
  rating INTEGER NOT NULL DEFAULT 0,
  title TEXT,
  comment TEXT NOT NULL DEFAULT '',
  is_verified INTEGER NOT NULL DEFAULT 0,
  review_token TEXT UNIQUE,
  review_token_expires DATETIME,
  review_submitted_at DATETIME,
  created_at DATETIME,
  UNIQUE (product_id, buyer_id)
);`,
	`CREATE TABLE review_images (
  id TEXT PRIMARY KEY,
  review_id TEXT NOT NULL,
  url TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE conversations (
  id TEXT PRIMARY KEY,
  created_at DATETIME
);`,
	`CREATE TABLE conversation_participants (
  id TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL,
  user_id TEXT NOT NULL
);`,
	`CREATE TABLE messages (
  id TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  body TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE follows (
  id TEXT PRIMARY KEY,
  follower_id TEXT NOT NULL,
  following_id TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE analytics_events (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  event_type TEXT NOT NULL,
  created_at DATETIME
);`,
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
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  topic TEXT,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh database. Every call gets its own in-memory file so
// tests never observe each other's rows.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// TxRunner mirrors db.Client.WithTx on top of a bare gorm handle.
type TxRunner struct {
	DB *gorm.DB
}

func (r TxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}
