package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreateSessionsTable, downCreateSessionsTable)
}

func upCreateSessionsTable(tx *sql.Tx) error {
	// one refresh-token slot per account
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
		);
	`)
	return err
}

func downCreateSessionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS sessions;`)
	return err
}
