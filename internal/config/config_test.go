package config

import (
	"reflect"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.TargetTable != "nyc_motor_vehicle_collisions" {
		t.Errorf("TargetTable = %q", cfg.TargetTable)
	}
	if !cfg.ManageSchema || !cfg.AuditRuns {
		t.Errorf("schema/audit defaults = %v, %v, want true, true", cfg.ManageSchema, cfg.AuditRuns)
	}
	if cfg.RegionAttributes[0] != "BoroName" {
		t.Errorf("RegionAttributes = %v", cfg.RegionAttributes)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("BOROUGH_TARGET_TABLE", "collisions_curated")
	t.Setenv("BOROUGH_GEOJSON_PATH", "/data/boroughs.geojson")
	t.Setenv("BOROUGH_MATCH_WORKERS", "8")
	t.Setenv("BOROUGH_MANAGE_SCHEMA", "off")
	t.Setenv("BOROUGH_REGION_ATTRIBUTES", "Name, BORO , ")

	cfg := FromEnv()

	if cfg.TargetTable != "collisions_curated" {
		t.Errorf("TargetTable = %q", cfg.TargetTable)
	}
	if cfg.PolygonPath != "/data/boroughs.geojson" {
		t.Errorf("PolygonPath = %q", cfg.PolygonPath)
	}
	if cfg.MatchWorkers != 8 {
		t.Errorf("MatchWorkers = %d", cfg.MatchWorkers)
	}
	if cfg.ManageSchema {
		t.Error("ManageSchema = true, want false")
	}
	if want := []string{"Name", "BORO"}; !reflect.DeepEqual(cfg.RegionAttributes, want) {
		t.Errorf("RegionAttributes = %v, want %v", cfg.RegionAttributes, want)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")

	if got := GetEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("GetEnvInt(TEST_INT) = %d, want 42", got)
	}
	if got := GetEnvInt("TEST_BAD_INT", 1); got != 1 {
		t.Errorf("GetEnvInt(TEST_BAD_INT) = %d, want default 1", got)
	}
	if got := GetEnvInt("TEST_UNSET_INT", 7); got != 7 {
		t.Errorf("GetEnvInt(unset) = %d, want default 7", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"maybe", true}, // unparseable keeps the default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := GetEnvBool("TEST_BOOL", true); got != tt.want {
				t.Errorf("GetEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
