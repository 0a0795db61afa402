package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateOrdersTables, downCreateOrdersTables)
}

func upCreateOrdersTables(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE orders (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	  total_cents BIGINT NOT NULL,
	  status TEXT NOT NULL DEFAULT 'pending',
	  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE TABLE order_items (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	  product_id UUID NOT NULL REFERENCES products(id),
	  quantity INTEGER NOT NULL CHECK (quantity > 0),
	  unit_price_cents BIGINT NOT NULL
	);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateOrdersTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS order_items; DROP TABLE IF EXISTS orders;`)
	return err
}
