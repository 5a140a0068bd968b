package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/nyc-collisions/internal/config"
)

// CheckTargetSchema verifies the target table carries the key, region and
// coordinate columns before any work starts.
func CheckTargetSchema(ctx context.Context, db *sql.DB, cfg config.Config) error {
	var missing []string
	for _, col := range []string{
		cfg.PrimaryKeyColumn,
		cfg.RegionColumn,
		cfg.LatitudeColumn,
		cfg.LongitudeColumn,
	} {
		exists, err := columnExists(ctx, db, cfg.TargetTable, col)
		if err != nil {
			return fmt.Errorf("failed to introspect %s.%s: %w", cfg.TargetTable, col, err)
		}
		if !exists {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Table: cfg.TargetTable, Missing: missing}
	}
	return nil
}

// EnsureFlagColumn adds the boolean update-flag column when absent.
// Existence is decided by schema introspection, never by catching a
// failed ALTER. Idempotent; the column is never removed by this process.
func EnsureFlagColumn(ctx context.Context, db *sql.DB, cfg config.Config) error {
	exists, err := columnExists(ctx, db, cfg.TargetTable, cfg.FlagColumn)
	if err != nil {
		return fmt.Errorf("failed to introspect flag column: %w", err)
	}
	if exists {
		return nil
	}

	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s BOOLEAN DEFAULT FALSE",
		pq.QuoteIdentifier(cfg.TargetTable), pq.QuoteIdentifier(cfg.FlagColumn))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to add flag column %s: %w", cfg.FlagColumn, err)
	}
	fmt.Printf("Added column %s to %s\n", cfg.FlagColumn, cfg.TargetTable)
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND LOWER(table_name) = LOWER($1)
			  AND LOWER(column_name) = LOWER($2)
		)
	`, table, column).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}
