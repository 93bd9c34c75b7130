package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id            BIGINT PRIMARY KEY,
		daily_sent         INT NOT NULL DEFAULT 0,
		last_reset_date    DATE NOT NULL,
		referrals          INT NOT NULL DEFAULT 0,
		bonus_allowance    INT NOT NULL DEFAULT 0,
		admin_pending_action TEXT NOT NULL DEFAULT '',
		conversation_phase TEXT NOT NULL DEFAULT 'idle',
		conversation_pending_number TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS dispatch_log (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL,
		destination TEXT NOT NULL,
		message     TEXT NOT NULL,
		sent_at     DATE NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dispatch_user_day
		ON dispatch_log (user_id, destination, sent_at);`,
	`CREATE TABLE IF NOT EXISTS referrals (
		referee_id  BIGINT PRIMARY KEY,
		referrer_id BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
}

// EnsureSchema creates missing tables and indexes. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
