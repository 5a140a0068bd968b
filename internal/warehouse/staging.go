package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/nyc-collisions/internal/config"
)

// StagedInference is one resolved (id, region) pair bound for the staging
// table. The key arrives as text and is coerced to int64 at publish time.
type StagedInference struct {
	ID     string
	Region string
}

// PublishStats reports what entered staging and what was excluded.
type PublishStats struct {
	Staged   int
	Excluded int
	Errors   []*CoercionError
}

// Staging is the handle to the run-scoped staging table. Temporary tables
// are session-scoped, so the handle pins one connection; Merge runs on the
// same connection and Close drops the table and releases it on every exit
// path.
type Staging struct {
	conn   *sql.Conn
	cfg    config.Config
	closed bool
}

// PublishStaging creates the transient staging table and batch-loads the
// inferences into it. Rows whose key cannot be coerced to an integer are
// excluded, counted and reported; they never abort the run.
func PublishStaging(ctx context.Context, db *sql.DB, cfg config.Config, rows []StagedInference) (*Staging, PublishStats, error) {
	var stats PublishStats

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to acquire staging connection: %w", err)
	}
	s := &Staging{conn: conn, cfg: cfg}

	table := pq.QuoteIdentifier(cfg.StagingTable)
	if _, err := conn.ExecContext(ctx,
		fmt.Sprintf("CREATE TEMPORARY TABLE %s (id BIGINT, region TEXT)", table)); err != nil {
		s.Close()
		return nil, stats, fmt.Errorf("failed to create staging table %s: %w", cfg.StagingTable, err)
	}

	type stagedRow struct {
		id     int64
		region string
	}
	coerced := make([]stagedRow, 0, len(rows))
	for _, r := range rows {
		id, err := coerceKey(r.ID)
		if err != nil {
			cerr := &CoercionError{ID: r.ID, Err: err}
			stats.Excluded++
			stats.Errors = append(stats.Errors, cerr)
			fmt.Printf("Excluding staged row: %v\n", cerr)
			continue
		}
		coerced = append(coerced, stagedRow{id: id, region: r.Region})
	}

	batchSize := cfg.InsertBatchSize
	if batchSize < 1 {
		batchSize = 400
	}
	for start := 0; start < len(coerced); start += batchSize {
		end := start + batchSize
		if end > len(coerced) {
			end = len(coerced)
		}
		batch := coerced[start:end]

		var sb strings.Builder
		fmt.Fprintf(&sb, "INSERT INTO %s (id, region) VALUES ", table)
		args := make([]interface{}, 0, len(batch)*2)
		for i, row := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "($%d, $%d)", len(args)+1, len(args)+2)
			args = append(args, row.id, row.region)
		}

		if _, err := conn.ExecContext(ctx, sb.String(), args...); err != nil {
			s.Close()
			return nil, stats, fmt.Errorf("failed to load staging table after %d rows: %w", stats.Staged, err)
		}
		stats.Staged += len(batch)
	}

	return s, stats, nil
}

// Close drops the staging table and releases the pinned connection. Safe
// to call more than once; uses a fresh context so cleanup still runs when
// the run context is already canceled.
func (s *Staging) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	_, dropErr := s.conn.ExecContext(context.Background(),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", pq.QuoteIdentifier(s.cfg.StagingTable)))
	closeErr := s.conn.Close()
	if dropErr != nil {
		return fmt.Errorf("failed to drop staging table: %w", dropErr)
	}
	return closeErr
}

// coerceKey parses the warehouse key as a strict integer. Numeric exports
// sometimes render integer keys as "123.0"; integral floats are accepted,
// anything fractional or non-numeric is not.
func coerceKey(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	// float64(MaxInt64) rounds up to 2^63, one past the last valid key,
	// so the upper bound must be exclusive.
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("integer key out of range or not integral: %v", f)
	}
	return int64(f), nil
}
