package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/Alijeyrad/rookie_backend/config"
)

// InitializeDatabases creates the application databases if they don't exist.
// It connects to the maintenance 'postgres' database to do so. server.databases
// lists extra names; the main database.dbname is always included.
func InitializeDatabases(ctx context.Context, cfg *config.Config) ([]string, error) {
	names := lo.Uniq(lo.Compact(append([]string{cfg.Database.DBName}, cfg.Server.Databases...)))
	if len(names) == 0 {
		return nil, fmt.Errorf("no database names provided")
	}

	maintenance := FromCentralConfig(cfg.Database)
	maintenance.DBName = "postgres"

	conn, err := openSQLDB(ctx, maintenance)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer conn.Close()

	var created []string
	for _, name := range names {
		ok, err := createDatabaseIfNotExists(ctx, conn, name)
		if err != nil {
			return created, fmt.Errorf("failed to create database %q: %w", name, err)
		}
		if ok {
			created = append(created, name)
		}
	}

	return created, nil
}

func createDatabaseIfNotExists(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check database: %w", err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE does not accept bind parameters.
	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("create database: %w", err)
	}
	return true, nil
}
