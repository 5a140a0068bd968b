package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nyc-collisions/internal/config"
	"github.com/nyc-collisions/internal/db"
	"github.com/nyc-collisions/internal/infer"
	"github.com/nyc-collisions/internal/warehouse"
	"github.com/nyc-collisions/internal/web"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "borough-matcher",
		Short: "NYC collision borough inference",
		Long:  `Infers missing boroughs for collision records by point-in-polygon matching against borough boundaries, then merges them into the warehouse table`,
	}

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createSummaryCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// createRunCmd creates the full pipeline run command
func createRunCmd() *cobra.Command {
	var (
		geojsonPath string
		targetTable string
		workers     int
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the borough inference pipeline",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromEnv()
			if geojsonPath != "" {
				cfg.PolygonPath = geojsonPath
			}
			if targetTable != "" {
				cfg.TargetTable = targetTable
			}
			if workers > 0 {
				cfg.MatchWorkers = workers
			}
			cfg.DryRun = dryRun

			conn, err := db.NewConnection()
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			defer conn.Close()

			report, err := infer.NewPipeline(conn.DB, cfg).Run(context.Background())
			if err != nil {
				log.Fatalf("Pipeline failed (run %d, %d candidates processed): %v",
					report.RunID, report.Candidates, err)
			}
			printReport(report)
		},
	}

	cmd.Flags().StringVar(&geojsonPath, "geojson", "", "borough boundaries GeoJSON path")
	cmd.Flags().StringVar(&targetTable, "table", "", "target table name")
	cmd.Flags().IntVar(&workers, "workers", 0, "matcher worker count")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "match and resolve but skip staging and merge")
	return cmd
}

// createSummaryCmd creates the post-merge summary command
func createSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print target table counts",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromEnv()

			conn, err := db.NewConnection()
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			defer conn.Close()

			summary, err := warehouse.Summarize(context.Background(), conn.DB, cfg)
			if err != nil {
				log.Fatalf("Failed to summarize %s: %v", cfg.TargetTable, err)
			}
			printSummary(cfg.TargetTable, summary)
		},
	}
}

// createPingCmd creates a command to test warehouse connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test warehouse connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromEnv()

			conn, err := db.NewConnection()
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			defer conn.Close()
			fmt.Println("Database connection successful!")

			summary, err := warehouse.Summarize(context.Background(), conn.DB, cfg)
			if err != nil {
				log.Printf("Error counting %s rows: %v", cfg.TargetTable, err)
				return
			}
			fmt.Printf("Collision records loaded: %d\n", summary.Total)
		},
	}
}

// createServeCmd creates the status server command
func createServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromEnv()

			conn, err := db.NewConnection()
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			defer conn.Close()

			if err := web.NewServer(conn.DB, cfg, addr).Run(); err != nil {
				log.Fatalf("Status server failed: %v", err)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func printReport(r *infer.Report) {
	fmt.Println("\nRun report:")
	fmt.Printf("  run id:            %d\n", r.RunID)
	fmt.Printf("  candidates:        %d\n", r.Candidates)
	fmt.Printf("  matched rows:      %d\n", r.Matched)
	fmt.Printf("  duplicates:        %d\n", r.Duplicates)
	if r.DryRun {
		fmt.Println("  dry run: staging and merge skipped")
	} else {
		fmt.Printf("  staged:            %d\n", r.Staged)
		fmt.Printf("  excluded keys:     %d\n", r.Excluded)
		fmt.Printf("  rows updated:      %d\n", r.Updated)
	}
	fmt.Println("\nPost-merge summary:")
	fmt.Printf("  total rows:        %d\n", r.Summary.Total)
	fmt.Printf("  remaining unset:   %d\n", r.Summary.RemainingUnset)
	fmt.Printf("  rows flagged:      %d\n", r.Summary.Flagged)
}

func printSummary(table string, s warehouse.Summary) {
	fmt.Printf("Summary for %s:\n", table)
	fmt.Printf("  total rows:        %d\n", s.Total)
	fmt.Printf("  remaining unset:   %d\n", s.RemainingUnset)
	fmt.Printf("  rows flagged:      %d\n", s.Flagged)
}
