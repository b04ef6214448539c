package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_image_tags",
		SQL: `CREATE TABLE IF NOT EXISTS image_tags (
  tag        TEXT        NOT NULL,
  public_id  TEXT        NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (tag, public_id)
);`,
	},
	{
		Name: "create_index_image_tags_public_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_image_tags_public_id ON image_tags (public_id);`,
	},
}

// EnsureMigrated checks if the 'image_tags' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With("component", "database", "db_host", dbHost)

	log.Info("checking schema", "event", "db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.image_tags') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("sentinel check failed", "event", "db_migration_failed", "status", "error",
			"error_message", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("schema already exists, skipping migration", "event", "db_migration_skip", "status", "success",
			"duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	log.Info("running migration", "event", "db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("migration step failed", "event", "db_migration_failed", "status", "error",
				"migration_step", step.Name, "error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds())
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("migration step applied", "event", "db_migration_step", "status", "success",
			"migration_step", step.Name, "step_duration_ms", time.Since(stepStart).Milliseconds())
	}

	log.Info("migration complete", "event", "db_migration_success", "status", "success",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
