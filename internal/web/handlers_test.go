package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nyc-collisions/internal/audit"
	"github.com/nyc-collisions/internal/config"
	"github.com/nyc-collisions/internal/warehouse"
)

func setupServer(t *testing.T) (*sql.DB, *httptest.Server) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "web.db"))
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

	cfg := config.Default()
	cfg.TargetTable = "collisions"

	ts := httptest.NewServer(NewRouter(db, cfg))
	t.Cleanup(ts.Close)
	return db, ts
}

func TestHealth(t *testing.T) {
	_, ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGetSummary(t *testing.T) {
	db, ts := setupServer(t)

	if _, err := db.Exec(`
		INSERT INTO collisions (collision_id, borough, latitude, longitude, borough_updated_manually) VALUES
			(1, 'Manhattan', 40.70, -73.99, TRUE),
			(2, NULL, 40.90, -73.10, FALSE),
			(3, 'Queens', 40.75, -73.95, FALSE)
	`); err != nil {
		t.Fatalf("failed to seed rows: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/summary")
	if err != nil {
		t.Fatalf("GET /api/summary failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var summary warehouse.Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	want := warehouse.Summary{Total: 3, RemainingUnset: 1, Flagged: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestListRuns(t *testing.T) {
	db, ts := setupServer(t)

	tracker := audit.NewTracker(db)
	ctx := context.Background()
	if err := tracker.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	if err := tracker.StartRun(ctx, 42, time.Now()); err != nil {
		t.Fatalf("StartRun() failed: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/runs")
	if err != nil {
		t.Fatalf("GET /api/runs failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var runs []audit.RunRecord
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("failed to decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != 42 {
		t.Errorf("runs = %+v, want single run 42", runs)
	}
}

func TestListRuns_InvalidLimit(t *testing.T) {
	_, ts := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/runs?limit=zero")
	if err != nil {
		t.Fatalf("GET /api/runs failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
