package warehouse

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// Merge applies the staged inferences to the target table with a single
// conditional update inside one transaction: a row is touched only when
// its key matches and its region is still unset at merge time, which
// keeps re-runs and racing writers safe. Staged keys with no matching
// target row are ignored. Returns the number of rows updated; on any
// failure the transaction rolls back and the target is left unchanged.
func (s *Staging) Merge(ctx context.Context) (int64, error) {
	cfg := s.cfg
	target := pq.QuoteIdentifier(cfg.TargetTable)
	region := pq.QuoteIdentifier(cfg.RegionColumn)
	flag := pq.QuoteIdentifier(cfg.FlagColumn)
	pk := pq.QuoteIdentifier(cfg.PrimaryKeyColumn)
	staging := pq.QuoteIdentifier(cfg.StagingTable)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		UPDATE %[1]s
		SET %[2]s = s.region, %[3]s = TRUE
		FROM %[4]s AS s
		WHERE %[1]s.%[5]s = s.id
		  AND %[1]s.%[2]s IS NULL
	`, target, region, flag, staging, pk)

	res, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("merge into %s failed: %w", cfg.TargetTable, err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("merge into %s failed: %w", cfg.TargetTable, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit merge into %s: %w", cfg.TargetTable, err)
	}
	return updated, nil
}
