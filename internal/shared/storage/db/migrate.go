package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Dialect returns the goose dialect for a database/sql driver name.
func Dialect(driverName string) string {
	if driverName == DriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// RunMigrations applies embedded SQL migrations via goose. If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB, databaseURL string) error {
	if database == nil {
		return nil
	}
	if err := prepareGoose(databaseURL); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, "migrations")
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(ctx context.Context, database *sql.DB, databaseURL string) error {
	if database == nil {
		return fmt.Errorf("database is nil")
	}
	if err := prepareGoose(databaseURL); err != nil {
		return err
	}
	return goose.DownContext(ctx, database, "migrations")
}

// MigrationStatus logs the applied state of every embedded migration.
func MigrationStatus(ctx context.Context, database *sql.DB, databaseURL string) error {
	if database == nil {
		return fmt.Errorf("database is nil")
	}
	if err := prepareGoose(databaseURL); err != nil {
		return err
	}
	return goose.StatusContext(ctx, database, "migrations")
}

func prepareGoose(databaseURL string) error {
	driverName, _ := DriverFor(databaseURL)
	goose.SetBaseFS(migrationFiles)
	return goose.SetDialect(Dialect(driverName))
}
