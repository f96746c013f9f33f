package admin

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"

	"github.com/doublescoop/punto/api/config"
)

// PgMigrateConfig holds the PostgreSQL connection settings for migrations.
type PgMigrateConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

// PgMigrateUp runs all pending PostgreSQL migrations.
func PgMigrateUp(log *slog.Logger, cfg PgMigrateConfig) error {
	log.Info("running PostgreSQL migrations (up)")
	if err := withGoose(cfg, func(db *sql.DB) error {
		return goose.Up(db, "migrations")
	}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("PostgreSQL migrations completed")
	return nil
}

// PgMigrateDown rolls back the last PostgreSQL migration.
func PgMigrateDown(log *slog.Logger, cfg PgMigrateConfig) error {
	log.Info("rolling back PostgreSQL migration (down)")
	if err := withGoose(cfg, func(db *sql.DB) error {
		return goose.Down(db, "migrations")
	}); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	log.Info("PostgreSQL migration rollback completed")
	return nil
}

// PgMigrateStatus prints the status of all PostgreSQL migrations.
func PgMigrateStatus(log *slog.Logger, cfg PgMigrateConfig) error {
	log.Info("PostgreSQL migration status")
	if err := withGoose(cfg, func(db *sql.DB) error {
		return goose.Status(db, "migrations")
	}); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

// withGoose opens a database/sql connection, points goose at the embedded
// migrations, and runs fn against it.
func withGoose(cfg PgMigrateConfig, fn func(db *sql.DB) error) error {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode,
	)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(config.EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return fn(db)
}
