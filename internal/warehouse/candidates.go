package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/nyc-collisions/internal/config"
)

// Candidate is a target row eligible for inference: region unset, both
// coordinates present. The key is kept as text until staging time, where
// it is coerced to the staging integer type.
type Candidate struct {
	ID  string
	Lat float64
	Lon float64
}

// SelectCandidates snapshots the rows eligible for borough inference.
// An empty result is a normal zero-work condition, not an error.
func SelectCandidates(ctx context.Context, db *sql.DB, cfg config.Config) ([]Candidate, error) {
	query := fmt.Sprintf(`
		SELECT CAST(%[1]s AS TEXT), %[2]s, %[3]s
		FROM %[4]s
		WHERE %[5]s IS NULL
		  AND %[2]s IS NOT NULL
		  AND %[3]s IS NOT NULL
	`,
		pq.QuoteIdentifier(cfg.PrimaryKeyColumn),
		pq.QuoteIdentifier(cfg.LatitudeColumn),
		pq.QuoteIdentifier(cfg.LongitudeColumn),
		pq.QuoteIdentifier(cfg.TargetTable),
		pq.QuoteIdentifier(cfg.RegionColumn),
	)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidates from %s: %w", cfg.TargetTable, err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidate selection failed after %d rows: %w", len(candidates), err)
	}

	return candidates, nil
}
