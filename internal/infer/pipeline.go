package infer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nyc-collisions/internal/audit"
	"github.com/nyc-collisions/internal/config"
	"github.com/nyc-collisions/internal/geo"
	"github.com/nyc-collisions/internal/warehouse"
)

// Pipeline runs one borough inference pass: candidate selection,
// point-in-polygon matching, conflict resolution, staging, conditional
// merge, post-merge summary.
type Pipeline struct {
	db  *sql.DB
	cfg config.Config
}

// NewPipeline creates a new inference pipeline
func NewPipeline(db *sql.DB, cfg config.Config) *Pipeline {
	return &Pipeline{db: db, cfg: cfg}
}

// Report is the outcome of one run. Counts are carried even on failure so
// the caller has enough context for a rerun.
type Report struct {
	RunID      int64             `json:"run_id"`
	Candidates int               `json:"candidates"`
	Matched    int               `json:"matched"`
	Duplicates int               `json:"duplicates"`
	Staged     int               `json:"staged"`
	Excluded   int               `json:"excluded"`
	Updated    int64             `json:"updated"`
	DryRun     bool              `json:"dry_run"`
	Summary    warehouse.Summary `json:"summary"`
}

// Run executes the pipeline once. Matching, resolution and staging work
// on an immutable snapshot; the merge is the only mutation and is atomic,
// so a failed run leaves the target table unchanged.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: time.Now().UnixNano(), DryRun: p.cfg.DryRun}

	status := "failed"
	tracker := audit.NewTracker(p.db)
	if p.cfg.AuditRuns {
		if err := tracker.EnsureSchema(ctx); err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else if err := tracker.StartRun(ctx, report.RunID, time.Now()); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		defer func() {
			if err := tracker.FinishRun(ctx, audit.RunRecord{
				RunID:      report.RunID,
				Status:     status,
				Candidates: int64(report.Candidates),
				Matched:    int64(report.Matched),
				Duplicates: int64(report.Duplicates),
				Staged:     int64(report.Staged),
				Excluded:   int64(report.Excluded),
				Updated:    report.Updated,
			}); err != nil {
				fmt.Printf("Warning: %v\n", err)
			}
		}()
	}

	if p.cfg.ManageSchema {
		if err := warehouse.CheckTargetSchema(ctx, p.db, p.cfg); err != nil {
			return report, err
		}
		if err := warehouse.EnsureFlagColumn(ctx, p.db, p.cfg); err != nil {
			return report, err
		}
	}

	candidates, err := warehouse.SelectCandidates(ctx, p.db, p.cfg)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)
	fmt.Printf("Candidate rows fetched: %d\n", len(candidates))

	if len(candidates) == 0 {
		fmt.Println("No rows eligible for inference.")
		if report.Summary, err = warehouse.Summarize(ctx, p.db, p.cfg); err != nil {
			return report, err
		}
		status = "empty"
		return report, nil
	}

	fmt.Printf("Loading borough polygons from: %s\n", p.cfg.PolygonPath)
	ref, err := geo.LoadReference(p.cfg.PolygonPath, p.cfg.RegionAttributes)
	if err != nil {
		return report, err
	}
	fmt.Printf("Loaded %d polygons (name attribute %q, %d features skipped)\n",
		len(ref.Regions), ref.NameAttribute, ref.Skipped)

	matcher := geo.NewMatcher(ref, p.cfg.MatchWorkers)
	points := make([]geo.Point, len(candidates))
	for i, c := range candidates {
		points[i] = geo.Point{ID: c.ID, Lat: c.Lat, Lon: c.Lon}
	}
	matches := matcher.Match(points)
	report.Matched = len(matches)
	fmt.Printf("Rows matched to a borough: %d\n", len(matches))

	inferences, duplicates := Resolve(matches)
	report.Duplicates = duplicates
	if duplicates > 0 {
		fmt.Printf("Collapsed %d duplicate match rows; keeping first borough per id.\n", duplicates)
	}

	if len(inferences) == 0 {
		fmt.Println("No matches found inside borough polygons.")
		if report.Summary, err = warehouse.Summarize(ctx, p.db, p.cfg); err != nil {
			return report, err
		}
		status = "empty"
		return report, nil
	}

	if p.cfg.DryRun {
		fmt.Printf("Dry run: %d inferences not staged or merged.\n", len(inferences))
		if report.Summary, err = warehouse.Summarize(ctx, p.db, p.cfg); err != nil {
			return report, err
		}
		status = "dry-run"
		return report, nil
	}

	staged := make([]warehouse.StagedInference, len(inferences))
	for i, inf := range inferences {
		staged[i] = warehouse.StagedInference{ID: inf.ID, Region: inf.Region}
	}

	staging, stats, err := warehouse.PublishStaging(ctx, p.db, p.cfg, staged)
	report.Staged = stats.Staged
	report.Excluded = stats.Excluded
	if err != nil {
		return report, err
	}
	defer staging.Close()
	fmt.Printf("Staged %d rows (%d excluded)\n", stats.Staged, stats.Excluded)

	if report.Updated, err = staging.Merge(ctx); err != nil {
		return report, err
	}
	fmt.Printf("Merge complete: %d rows updated\n", report.Updated)

	if report.Summary, err = warehouse.Summarize(ctx, p.db, p.cfg); err != nil {
		return report, err
	}

	status = "success"
	return report, nil
}
