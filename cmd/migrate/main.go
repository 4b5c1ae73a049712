package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status]

import (
	"context"
	"fmt"
	"os"

	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/storage/db"
	"kyc-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	defer telemetry.Sync()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if err := run(context.Background(), cfg.DatabaseURL, command); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, command string) error {
	sqlDB, err := db.Connect(ctx, databaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer sqlDB.Close()

	switch command {
	case "up":
		return db.RunMigrations(ctx, sqlDB, databaseURL)
	case "down":
		return db.RollbackMigration(ctx, sqlDB, databaseURL)
	case "status":
		return db.MigrationStatus(ctx, sqlDB, databaseURL)
	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", command)
	}
}
