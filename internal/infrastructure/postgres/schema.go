package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS authority_movements (
		id             TEXT PRIMARY KEY,
		seq            BIGSERIAL,
		type           TEXT NOT NULL,
		product_name   TEXT NOT NULL,
		product_key    TEXT NOT NULL,
		category       TEXT,
		quantity       NUMERIC(18,4) NOT NULL,
		unit           TEXT,
		unit_price     NUMERIC(18,4) NOT NULL DEFAULT 0,
		movement_value NUMERIC(18,4) NOT NULL DEFAULT 0,
		supplier       TEXT,
		document_ref   TEXT,
		lot            TEXT,
		expiry         TIMESTAMPTZ,
		note           TEXT,
		ts             TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_authority_movements_product ON authority_movements(product_key)`,
	`CREATE TABLE IF NOT EXISTS authority_thresholds (
		product_key       TEXT PRIMARY KEY,
		product_name      TEXT,
		unit              TEXT,
		min_threshold     NUMERIC(18,4) NOT NULL DEFAULT 0,
		optimal_threshold NUMERIC(18,4) NOT NULL DEFAULT 0,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema crea las tablas del servidor autoritativo si no existen (una sola transacción).
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
