package admin

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
)

// ResetDB truncates every ledger table, wiping all issues, submissions, and
// payments while keeping the schema and migration history intact. It prompts
// for confirmation unless skipConfirm is set.
func ResetDB(log *slog.Logger, cfg PgMigrateConfig, dryRun, skipConfirm bool) error {
	ctx := context.Background()

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

	// Everything in public except goose's bookkeeping table.
	rows, err := db.QueryContext(ctx, `
		SELECT tablename
		FROM pg_tables
		WHERE schemaname = 'public'
		  AND tablename != 'goose_db_version'
		ORDER BY tablename
	`)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tables: %w", err)
	}

	if len(tables) == 0 {
		log.Info("no tables to reset")
		return nil
	}

	log.Info("tables to truncate", "count", len(tables), "tables", strings.Join(tables, ", "))

	if dryRun {
		log.Info("[DRY RUN] no data was deleted")
		return nil
	}

	if !skipConfirm {
		fmt.Printf("This will DELETE ALL DATA in %d table(s) of database %q. Type 'yes' to continue: ", len(tables), cfg.Database)
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(answer) != "yes" {
			log.Info("aborted")
			return nil
		}
	}

	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(quoted, ", ")+" CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	log.Info("database reset complete", "truncated", len(tables))
	return nil
}
