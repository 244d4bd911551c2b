package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"budgetsense/internal/core"
)

// LoadTables reads lookup tables from a TOML file. Sections missing from
// the file keep their default values. An empty path returns the defaults.
//
//	ministries = ["Health", "Education"]
//	regions = ["National", "Rural"]
//
//	[[priorities]]
//	name = "High"
//	weight = 0.8
//
//	[dev_index]
//	min = 0.3
//	max = 0.9
func LoadTables(path string) (core.Tables, error) {
	tables := core.DefaultTables()
	if path == "" {
		return tables, nil
	}

	var file core.Tables
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return core.Tables{}, fmt.Errorf("decode tables file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return core.Tables{}, fmt.Errorf("tables file %s: unknown keys %v", path, undecoded)
	}

	if md.IsDefined("ministries") {
		tables.Ministries = file.Ministries
	}
	if md.IsDefined("priorities") {
		tables.Priorities = file.Priorities
	}
	if md.IsDefined("regions") {
		tables.Regions = file.Regions
	}
	if md.IsDefined("projects_count") {
		tables.ProjectsCount = file.ProjectsCount
	}
	if md.IsDefined("dev_index") {
		tables.DevIndex = file.DevIndex
	}
	if md.IsDefined("prev_budget") {
		tables.PrevBudget = file.PrevBudget
	}
	if md.IsDefined("gdp_impact") {
		tables.GDPImpact = file.GDPImpact
	}
	if md.IsDefined("noise") {
		tables.Noise = file.Noise
	}

	if err := tables.Validate(); err != nil {
		return core.Tables{}, fmt.Errorf("tables file %s: %w", path, err)
	}
	return tables, nil
}
