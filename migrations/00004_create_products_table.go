package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateProductsTable, downCreateProductsTable)
}

func upCreateProductsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE products (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  name TEXT NOT NULL,
	  description TEXT NOT NULL DEFAULT '',
	  price_cents BIGINT NOT NULL,
	  count_in_stock INTEGER NOT NULL DEFAULT 0,
	  image_url TEXT,
	  created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
	  updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateProductsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS products;`)
	return err
}
