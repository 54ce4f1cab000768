// Package tests holds end-to-end tests that drive the HTTP API against a real PostgreSQL database.
package tests

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shipway/server/internal/db"
)

// OpenMigrated opens the database at databaseURL and applies the embedded migrations.
func OpenMigrated(ctx context.Context, databaseURL string) (*sql.DB, error) {
	database, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

// TruncateAuthTables empties users and OTP codes for a clean test state.
func TruncateAuthTables(ctx context.Context, database *sql.DB) error {
	return db.Truncate(ctx, database)
}
