package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/nyc-collisions/internal/config"
)

// Summary holds post-merge aggregate counts, recomputed from the target
// table rather than from in-memory state.
type Summary struct {
	Total          int64 `json:"total"`
	RemainingUnset int64 `json:"remaining_unset"`
	Flagged        int64 `json:"flagged_count"`
}

// Summarize recounts the target table. Read-only.
func Summarize(ctx context.Context, db *sql.DB, cfg config.Config) (Summary, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN %s IS NULL THEN 1 END),
			COUNT(CASE WHEN %s THEN 1 END)
		FROM %s
	`,
		pq.QuoteIdentifier(cfg.RegionColumn),
		pq.QuoteIdentifier(cfg.FlagColumn),
		pq.QuoteIdentifier(cfg.TargetTable),
	)

	var s Summary
	if err := db.QueryRowContext(ctx, query).Scan(&s.Total, &s.RemainingUnset, &s.Flagged); err != nil {
		return Summary{}, fmt.Errorf("failed to summarize %s: %w", cfg.TargetTable, err)
	}
	return s, nil
}
