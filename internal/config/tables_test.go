package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budgetsense/internal/core"
)

func writeTables(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tables.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write tables: %v", err)
	}
	return path
}

func TestLoadTablesDefaults(t *testing.T) {
	tb, err := LoadTables("")
	if err != nil {
		t.Fatalf("LoadTables(\"\") error = %v", err)
	}
	if len(tb.Ministries) != len(core.DefaultTables().Ministries) {
		t.Fatalf("expected default ministries")
	}
}

func TestLoadTablesOverrides(t *testing.T) {
	path := writeTables(t, `
ministries = ["Health", "Education"]

[[priorities]]
name = "Critical"
weight = 1.0

[[priorities]]
name = "Routine"
weight = 0.5

[prev_budget]
min = 500
max = 1000
`)
	tb, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables error = %v", err)
	}
	if len(tb.Ministries) != 2 || tb.Ministries[1] != "Education" {
		t.Fatalf("ministries not overridden: %v", tb.Ministries)
	}
	if w, ok := tb.Weight("routine"); !ok || w != 0.5 {
		t.Fatalf("priority weights not loaded: %+v", tb.Priorities)
	}
	if tb.PrevBudget != (core.Range{Min: 500, Max: 1000}) {
		t.Fatalf("prev_budget not overridden: %+v", tb.PrevBudget)
	}
	// untouched sections keep defaults
	if len(tb.Regions) != 5 || tb.DevIndex != core.DefaultTables().DevIndex {
		t.Fatalf("defaults lost: %+v", tb)
	}
}

func TestLoadTablesEmptyEnum(t *testing.T) {
	path := writeTables(t, `regions = []`)
	_, err := LoadTables(path)
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadTablesUnknownKey(t *testing.T) {
	path := writeTables(t, `colour = "blue"`)
	_, err := LoadTables(path)
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadTablesBadSyntax(t *testing.T) {
	path := writeTables(t, `ministries = [`)
	if _, err := LoadTables(path); err == nil {
		t.Fatal("expected decode error")
	}
}
