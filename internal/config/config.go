package config

import (
	"os"
	"strconv"
	"strings"
)

// Config carries all invocation parameters for the borough inference
// pipeline. Components receive it explicitly; nothing in the core reads
// the environment directly.
type Config struct {
	// Target table identifiers
	TargetTable      string
	PrimaryKeyColumn string
	RegionColumn     string
	LatitudeColumn   string
	LongitudeColumn  string
	FlagColumn       string

	// Run-scoped staging table name
	StagingTable string

	// Polygon reference source
	PolygonPath      string
	RegionAttributes []string

	InsertBatchSize int
	MatchWorkers    int

	// ManageSchema controls whether the run verifies target columns and
	// adds the flag column via DDL. Deployments whose database role has
	// no ALTER rights run with this off and provision the column out of
	// band.
	ManageSchema bool

	// AuditRuns records per-run counters in the run history table.
	AuditRuns bool

	// DryRun stops after conflict resolution; no staging, no merge.
	DryRun bool
}

// Default returns the configuration used against the collisions warehouse.
func Default() Config {
	return Config{
		TargetTable:      "nyc_motor_vehicle_collisions",
		PrimaryKeyColumn: "collision_id",
		RegionColumn:     "borough",
		LatitudeColumn:   "latitude",
		LongitudeColumn:  "longitude",
		FlagColumn:       "borough_updated_manually",
		StagingTable:     "staging_borough_updates",
		PolygonPath:      "borough_boundaries.geojson",
		RegionAttributes: []string{"BoroName", "borough", "BoroughName", "BORONAME", "Boro_Name"},
		InsertBatchSize:  400,
		MatchWorkers:     4,
		ManageSchema:     true,
		AuditRuns:        true,
	}
}

// FromEnv builds a Config from BOROUGH_* environment variables, falling
// back to defaults. Attribute candidates are comma-separated.
func FromEnv() Config {
	cfg := Default()
	cfg.TargetTable = GetEnv("BOROUGH_TARGET_TABLE", cfg.TargetTable)
	cfg.PrimaryKeyColumn = GetEnv("BOROUGH_PK_COLUMN", cfg.PrimaryKeyColumn)
	cfg.RegionColumn = GetEnv("BOROUGH_REGION_COLUMN", cfg.RegionColumn)
	cfg.LatitudeColumn = GetEnv("BOROUGH_LAT_COLUMN", cfg.LatitudeColumn)
	cfg.LongitudeColumn = GetEnv("BOROUGH_LON_COLUMN", cfg.LongitudeColumn)
	cfg.FlagColumn = GetEnv("BOROUGH_FLAG_COLUMN", cfg.FlagColumn)
	cfg.StagingTable = GetEnv("BOROUGH_STAGING_TABLE", cfg.StagingTable)
	cfg.PolygonPath = GetEnv("BOROUGH_GEOJSON_PATH", cfg.PolygonPath)
	cfg.InsertBatchSize = GetEnvInt("BOROUGH_INSERT_BATCH", cfg.InsertBatchSize)
	cfg.MatchWorkers = GetEnvInt("BOROUGH_MATCH_WORKERS", cfg.MatchWorkers)
	cfg.ManageSchema = GetEnvBool("BOROUGH_MANAGE_SCHEMA", cfg.ManageSchema)
	cfg.AuditRuns = GetEnvBool("BOROUGH_AUDIT_RUNS", cfg.AuditRuns)

	if raw := os.Getenv("BOROUGH_REGION_ATTRIBUTES"); raw != "" {
		var attrs []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				attrs = append(attrs, part)
			}
		}
		if len(attrs) > 0 {
			cfg.RegionAttributes = attrs
		}
	}
	return cfg
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets integer environment variable with default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvBool gets boolean environment variable with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}
