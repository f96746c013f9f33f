package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/doublescoop/punto/admin/internal/admin"
	"github.com/doublescoop/punto/ledger/pkg/store"
	"github.com/doublescoop/punto/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// PostgreSQL configuration
	pgHostFlag := flag.String("pg-host", "localhost", "PostgreSQL host (or set POSTGRES_HOST env var)")
	pgPortFlag := flag.String("pg-port", "5432", "PostgreSQL port (or set POSTGRES_PORT env var)")
	pgDatabaseFlag := flag.String("pg-database", "", "PostgreSQL database name (or set POSTGRES_DB env var)")
	pgUsernameFlag := flag.String("pg-username", "", "PostgreSQL username (or set POSTGRES_USER env var)")
	pgPasswordFlag := flag.String("pg-password", "", "PostgreSQL password (or set POSTGRES_PASSWORD env var)")
	pgSSLModeFlag := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode (or set POSTGRES_SSLMODE env var)")

	// Commands
	pgMigrateFlag := flag.Bool("pg-migrate", false, "Run PostgreSQL database migrations using goose")
	pgMigrateDownFlag := flag.Bool("pg-migrate-down", false, "Roll back the last PostgreSQL migration")
	pgMigrateStatusFlag := flag.Bool("pg-migrate-status", false, "Show PostgreSQL migration status")
	reconcilePaymentsFlag := flag.Bool("reconcile-payments", false, "Open payments for accepted submissions that are missing one")
	resetDBFlag := flag.Bool("reset-db", false, "Truncate all ledger tables (keeps schema and migration history)")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	// Override PostgreSQL flags with environment variables if set
	if env := os.Getenv("POSTGRES_HOST"); env != "" {
		*pgHostFlag = env
	}
	if env := os.Getenv("POSTGRES_PORT"); env != "" {
		*pgPortFlag = env
	}
	if env := os.Getenv("POSTGRES_DB"); env != "" {
		*pgDatabaseFlag = env
	}
	if env := os.Getenv("POSTGRES_USER"); env != "" {
		*pgUsernameFlag = env
	}
	if env := os.Getenv("POSTGRES_PASSWORD"); env != "" {
		*pgPasswordFlag = env
	}
	if env := os.Getenv("POSTGRES_SSLMODE"); env != "" {
		*pgSSLModeFlag = env
	}

	pgCfg := admin.PgMigrateConfig{
		Host:     *pgHostFlag,
		Port:     *pgPortFlag,
		Database: *pgDatabaseFlag,
		Username: *pgUsernameFlag,
		Password: *pgPasswordFlag,
		SSLMode:  *pgSSLModeFlag,
	}

	requirePg := func(command string) error {
		if pgCfg.Database == "" {
			return fmt.Errorf("--pg-database is required for --%s", command)
		}
		if pgCfg.Username == "" {
			return fmt.Errorf("--pg-username is required for --%s", command)
		}
		return nil
	}

	// Execute commands
	if *pgMigrateFlag {
		if err := requirePg("pg-migrate"); err != nil {
			return err
		}
		return admin.PgMigrateUp(log, pgCfg)
	}

	if *pgMigrateDownFlag {
		if err := requirePg("pg-migrate-down"); err != nil {
			return err
		}
		return admin.PgMigrateDown(log, pgCfg)
	}

	if *pgMigrateStatusFlag {
		if err := requirePg("pg-migrate-status"); err != nil {
			return err
		}
		return admin.PgMigrateStatus(log, pgCfg)
	}

	if *reconcilePaymentsFlag {
		if err := requirePg("reconcile-payments"); err != nil {
			return err
		}
		ctx := context.Background()
		connStr := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			pgCfg.Username, pgCfg.Password, pgCfg.Host, pgCfg.Port, pgCfg.Database, pgCfg.SSLMode,
		)
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		st, err := store.New(store.Config{Logger: log, Pool: pool})
		if err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}
		_, err = admin.ReconcilePayments(ctx, log, st, *dryRunFlag)
		return err
	}

	if *resetDBFlag {
		if err := requirePg("reset-db"); err != nil {
			return err
		}
		return admin.ResetDB(log, pgCfg, *dryRunFlag, *yesFlag)
	}

	flag.Usage()
	return nil
}
