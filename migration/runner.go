package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Run creates the users table if it does not exist. telegram_id is
// deliberately not unique: the /start handler checks for an existing
// record before inserting.
func Run(ctx context.Context, dbpool *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL,
		login TEXT,
		start_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);
	`

	if _, err := dbpool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
