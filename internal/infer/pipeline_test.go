package infer

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nyc-collisions/internal/audit"
	"github.com/nyc-collisions/internal/config"
	"github.com/nyc-collisions/internal/geo"
	"github.com/nyc-collisions/internal/warehouse"
)

const boroughFixture = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"BoroName": "Manhattan"},
			"geometry": {"type": "Polygon", "coordinates": [[[-74.02, 40.68], [-73.96, 40.68], [-73.96, 40.74], [-74.02, 40.74], [-74.02, 40.68]]]}
		},
		{
			"type": "Feature",
			"properties": {"BoroName": "Brooklyn"},
			"geometry": {"type": "Polygon", "coordinates": [[[-74.05, 40.57], [-73.85, 40.57], [-73.85, 40.65], [-74.05, 40.65], [-74.05, 40.57]]]}
		}
	]
}`

func setupPipeline(t *testing.T) (*sql.DB, config.Config) {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite3", filepath.Join(dir, "warehouse.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE collisions (
			collision_id INTEGER PRIMARY KEY,
			borough TEXT,
			latitude REAL,
			longitude REAL,
			borough_updated_manually BOOLEAN DEFAULT FALSE
		)
	`)
	if err != nil {
		t.Fatalf("failed to create target table: %v", err)
	}

	geojsonPath := filepath.Join(dir, "boroughs.geojson")
	if err := os.WriteFile(geojsonPath, []byte(boroughFixture), 0o644); err != nil {
		t.Fatalf("failed to write geojson fixture: %v", err)
	}

	cfg := config.Default()
	cfg.TargetTable = "collisions"
	cfg.PolygonPath = geojsonPath
	cfg.MatchWorkers = 2
	cfg.ManageSchema = false // sqlite has no information_schema; column provisioned above
	cfg.AuditRuns = true
	return db, cfg
}

func insertCollision(t *testing.T, db *sql.DB, id int64, borough interface{}, lat, lon interface{}) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO collisions (collision_id, borough, latitude, longitude) VALUES ($1, $2, $3, $4)",
		id, borough, lat, lon)
	if err != nil {
		t.Fatalf("failed to insert row %d: %v", id, err)
	}
}

func readRow(t *testing.T, db *sql.DB, id int64) (borough sql.NullString, flagged bool) {
	t.Helper()
	err := db.QueryRow(
		"SELECT borough, borough_updated_manually FROM collisions WHERE collision_id = $1", id).
		Scan(&borough, &flagged)
	if err != nil {
		t.Fatalf("failed to read row %d: %v", id, err)
	}
	return borough, flagged
}

func TestPipelineRun(t *testing.T) {
	db, cfg := setupPipeline(t)

	insertCollision(t, db, 101, nil, 40.70, -73.99)      // inside Manhattan
	insertCollision(t, db, 102, nil, 40.90, -73.10)      // outside every polygon
	insertCollision(t, db, 103, "Queens", 40.75, -73.95) // already resolved

	report, err := NewPipeline(db, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if report.Candidates != 2 {
		t.Errorf("Candidates = %d, want 2", report.Candidates)
	}
	if report.Matched != 1 || report.Duplicates != 0 {
		t.Errorf("Matched = %d, Duplicates = %d, want 1, 0", report.Matched, report.Duplicates)
	}
	if report.Staged != 1 || report.Excluded != 0 {
		t.Errorf("Staged = %d, Excluded = %d, want 1, 0", report.Staged, report.Excluded)
	}
	if report.Updated != 1 {
		t.Errorf("Updated = %d, want 1", report.Updated)
	}

	want := warehouse.Summary{Total: 3, RemainingUnset: 1, Flagged: 1}
	if report.Summary != want {
		t.Errorf("Summary = %+v, want %+v", report.Summary, want)
	}

	// Row 101 was inferred and flagged.
	borough, flagged := readRow(t, db, 101)
	if borough.String != "Manhattan" || !flagged {
		t.Errorf("row 101 = (%v, %v), want (Manhattan, true)", borough, flagged)
	}
	// Row 102 matched nothing: no false positive, no flag.
	borough, flagged = readRow(t, db, 102)
	if borough.Valid || flagged {
		t.Errorf("row 102 = (%v, %v), want unset and unflagged", borough, flagged)
	}
	// Row 103 was already resolved: flag must never toggle.
	borough, flagged = readRow(t, db, 103)
	if borough.String != "Queens" || flagged {
		t.Errorf("row 103 = (%v, %v), want untouched (Queens, false)", borough, flagged)
	}
}

func TestPipelineRun_Idempotent(t *testing.T) {
	db, cfg := setupPipeline(t)

	insertCollision(t, db, 101, nil, 40.70, -73.99)
	insertCollision(t, db, 102, nil, 40.90, -73.10)

	pipeline := NewPipeline(db, cfg)
	first, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}
	if first.Updated != 1 {
		t.Fatalf("first run updated %d rows, want 1", first.Updated)
	}

	second, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}
	if second.Candidates != 1 {
		t.Errorf("second run Candidates = %d, want 1 (only the unmatched row)", second.Candidates)
	}
	if second.Matched != 0 || second.Updated != 0 {
		t.Errorf("second run Matched = %d, Updated = %d, want 0, 0", second.Matched, second.Updated)
	}
	if second.Summary != first.Summary {
		t.Errorf("table state changed between runs: %+v vs %+v", second.Summary, first.Summary)
	}
}

func TestPipelineRun_EmptyCandidates(t *testing.T) {
	db, cfg := setupPipeline(t)
	// Early exit must happen before the polygon source is touched.
	cfg.PolygonPath = filepath.Join(t.TempDir(), "never-read.geojson")

	insertCollision(t, db, 1, "Queens", 40.75, -73.95)

	report, err := NewPipeline(db, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() with no candidates failed: %v", err)
	}
	if report.Candidates != 0 || report.Updated != 0 {
		t.Errorf("report = %+v, want zero-work", report)
	}
	if report.Summary.Total != 1 {
		t.Errorf("Summary.Total = %d, want 1", report.Summary.Total)
	}
}

func TestPipelineRun_DryRun(t *testing.T) {
	db, cfg := setupPipeline(t)
	cfg.DryRun = true

	insertCollision(t, db, 101, nil, 40.70, -73.99)

	report, err := NewPipeline(db, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if report.Matched != 1 || report.Updated != 0 || report.Staged != 0 {
		t.Errorf("dry run report = %+v, want matches without mutation", report)
	}

	borough, flagged := readRow(t, db, 101)
	if borough.Valid || flagged {
		t.Errorf("dry run mutated row 101: (%v, %v)", borough, flagged)
	}
}

func TestPipelineRun_BadReferenceAborts(t *testing.T) {
	db, cfg := setupPipeline(t)
	cfg.PolygonPath = filepath.Join(t.TempDir(), "missing.geojson")

	insertCollision(t, db, 101, nil, 40.70, -73.99)

	_, err := NewPipeline(db, cfg).Run(context.Background())
	var loadErr *geo.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Run() error = %v, want *geo.LoadError", err)
	}

	// Fatal before any mutation: the target row is untouched.
	borough, flagged := readRow(t, db, 101)
	if borough.Valid || flagged {
		t.Errorf("failed run mutated row 101: (%v, %v)", borough, flagged)
	}
}

func TestPipelineRun_RecordsAuditHistory(t *testing.T) {
	db, cfg := setupPipeline(t)

	insertCollision(t, db, 101, nil, 40.70, -73.99)

	report, err := NewPipeline(db, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	runs, err := audit.NewTracker(db).RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d audit records, want 1", len(runs))
	}
	rec := runs[0]
	if rec.RunID != report.RunID || rec.Status != "success" {
		t.Errorf("audit record = %+v, want success for run %d", rec, report.RunID)
	}
	if rec.Candidates != 1 || rec.Updated != 1 {
		t.Errorf("audit counters = %+v", rec)
	}
}
