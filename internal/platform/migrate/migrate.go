package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"pecportal/migrations"
)

// VersionTable keeps goose's bookkeeping apart from the hosted backend's own
// migration tables.
const VersionTable = "pecportal_schema_migrations"

// hostedSchemaVersion is the migration that creates the tables the hosted
// backend's dashboard provisions by hand.
const hostedSchemaVersion int64 = 1

// coreTables are created by hostedSchemaVersion.
var coreTables = []string{"clubs", "events", "notices", "profiles"}

// Apply runs any pending SQL migrations bundled with the binary.
func Apply(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetBaseFS(migrations.Files)
	goose.SetLogger(gooseSlogLogger{logger: logger})
	goose.SetTableName(VersionTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: set goose dialect: %w", err)
	}

	if err := adoptHostedSchema(ctx, db.DB, logger); err != nil {
		return err
	}

	before, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("migrate: read schema version: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("migrate: goose up: %w", err)
	}
	after, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("migrate: read schema version: %w", err)
	}

	if after != before {
		logger.Info("schema migrated", "from", before, "to", after)
	} else {
		logger.Debug("schema up to date", "version", after)
	}
	return nil
}

// adoptHostedSchema marks the hosted schema migration as applied when its
// tables already exist but goose has never run against the database. A
// database holding only some of them is rejected rather than half-migrated.
func adoptHostedSchema(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	present, err := existingTables(ctx, db, coreTables)
	if err != nil {
		return fmt.Errorf("migrate: inspect core tables: %w", err)
	}

	switch len(present) {
	case 0:
		return nil
	case len(coreTables):
	default:
		return fmt.Errorf("migrate: partial portal schema, found only %s", strings.Join(present, ", "))
	}

	if _, err := goose.EnsureDBVersionContext(ctx, db); err != nil {
		return fmt.Errorf("migrate: ensure version table: %w", err)
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: read schema version: %w", err)
	}
	if current != 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (version_id, is_applied) VALUES ($1, TRUE)`, goose.TableName())
	if _, err := db.ExecContext(ctx, query, hostedSchemaVersion); err != nil {
		return fmt.Errorf("migrate: record hosted schema: %w", err)
	}
	logger.Info("adopted hosted schema", "version", hostedSchemaVersion)
	return nil
}

// existingTables returns which of names exist in the current schema, sorted.
func existingTables(ctx context.Context, db *sql.DB, names []string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tablename FROM pg_tables WHERE schemaname = current_schema() AND tablename = ANY($1)`,
		pq.Array(names),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		found = append(found, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
