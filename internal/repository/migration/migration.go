// Package migration схема Postgres для состояния сессий, журналов спинов и покупок, кошелька.
package migration

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var stmts = []string{
	`CREATE TABLE IF NOT EXISTS session_state (
		session_id            TEXT PRIMARY KEY,
		mode                  TEXT NOT NULL DEFAULT 'base',
		bonus_spins_remaining INTEGER NOT NULL DEFAULT 0,
		carried_multiplier    INTEGER NOT NULL DEFAULT 1,
		bonus_wager           NUMERIC(20, 2) NOT NULL DEFAULT 0,
		last_spin_id          TEXT NOT NULL DEFAULT '',
		risk_score            INTEGER NOT NULL DEFAULT 0,
		version               BIGINT NOT NULL DEFAULT 0
	);`,

	`CREATE TABLE IF NOT EXISTS spin_log (
		request_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		version    BIGINT NOT NULL,
		total_win  NUMERIC(20, 2) NOT NULL,
		payload    BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_spin_log_session_version ON spin_log(session_id, version);`,

	`CREATE TABLE IF NOT EXISTS bonus_purchase (
		request_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		cost       NUMERIC(20, 2) NOT NULL,
		payload    BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,

	`CREATE TABLE IF NOT EXISTS accounts (
		session_id TEXT PRIMARY KEY,
		balance    NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0)
	);`,
	`CREATE TABLE IF NOT EXISTS ledger_entry (
		request_id    TEXT NOT NULL,
		kind          TEXT NOT NULL,
		session_id    TEXT NOT NULL,
		amount        NUMERIC(20, 2) NOT NULL,
		balance_after NUMERIC(20, 2) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (request_id, kind)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entry_session ON ledger_entry(session_id, created_at DESC);`,
}

// Up создает таблицы, если их нет. Все в одной транзакции
func Up(ctx context.Context, db *pgxpool.Pool) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, q := range stmts {
		if _, err := tx.Exec(ctx, q); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
