package repository

import (
	"context"
	"errors"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		id         TEXT PRIMARY KEY,
		owners     TEXT[] NOT NULL,
		threshold  INTEGER NOT NULL CHECK (threshold > 0),
		authority  TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		wallet_id  TEXT NOT NULL REFERENCES wallets (id),
		proposer   TEXT NOT NULL,
		subject    TEXT NOT NULL,
		payload    BYTEA NOT NULL,
		approvals  TEXT[] NOT NULL DEFAULT '{}',
		executed   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_wallet_id_idx ON wallet_transactions (wallet_id, seq)`,
}

// RunMigration creates the schema. It is safe to run it on every start.
func (db DataBase) RunMigration(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.inner.ExecContext(ctx, m); err != nil {
			return errors.Join(ErrMigrationFailed, err)
		}
	}
	return nil
}
