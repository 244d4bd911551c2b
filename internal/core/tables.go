package core

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// PriorityLevel is a priority tier and its weight in the allocation formula.
	PriorityLevel struct {
		Name   string  `toml:"name" json:"name"`
		Weight float64 `toml:"weight" json:"weight"`
	}

	// Range is a closed interval of reals.
	Range struct {
		Min float64 `toml:"min" json:"min"`
		Max float64 `toml:"max" json:"max"`
	}

	// IntRange is a closed interval of integers.
	IntRange struct {
		Min int `toml:"min" json:"min"`
		Max int `toml:"max" json:"max"`
	}

	// Tables holds every lookup table and draw range used to generate and
	// interpret budget records. A Tables value is built once and passed to
	// whoever needs it; nothing mutates it afterwards.
	Tables struct {
		Ministries    []string        `toml:"ministries"`
		Priorities    []PriorityLevel `toml:"priorities"`
		Regions       []string        `toml:"regions"`
		ProjectsCount IntRange        `toml:"projects_count"`
		DevIndex      Range           `toml:"dev_index"`
		PrevBudget    Range           `toml:"prev_budget"`
		GDPImpact     Range           `toml:"gdp_impact"`
		Noise         Range           `toml:"noise"`
	}
)

// DefaultTables returns the ministry budget tables.
func DefaultTables() Tables {
	return Tables{
		Ministries: []string{
			"Health",
			"Education",
			"Defense",
			"Agriculture",
			"Railways",
			"Environment",
			"Women & Child Welfare",
			"Science & Tech",
			"Home Affairs",
			"Sports",
			"Finance",
			"External Affairs",
			"Road Transport",
			"Power",
			"Housing & Urban Affairs",
		},
		Priorities: []PriorityLevel{
			{Name: "Very High", Weight: 1.0},
			{Name: "High", Weight: 0.8},
			{Name: "Medium", Weight: 0.6},
			{Name: "Low", Weight: 0.4},
		},
		Regions:       []string{"National", "Rural", "Urban", "Multi-State", "Select States"},
		ProjectsCount: IntRange{Min: 10, Max: 200},
		DevIndex:      Range{Min: 0.3, Max: 0.9},
		PrevBudget:    Range{Min: 10000, Max: 150000},
		GDPImpact:     Range{Min: 0.5, Max: 4.0},
		Noise:         Range{Min: -0.05, Max: 0.10},
	}
}

// Clone returns a deep copy so callers can hold tables no one else can change.
func (t Tables) Clone() Tables {
	c := t
	c.Ministries = slices.Clone(t.Ministries)
	c.Priorities = slices.Clone(t.Priorities)
	c.Regions = slices.Clone(t.Regions)
	return c
}

// Validate reports every problem with the tables as one ConfigurationError.
func (t Tables) Validate() error {
	var problems []string

	if len(t.Ministries) == 0 {
		problems = append(problems, "ministry table is empty")
	}
	if len(t.Priorities) == 0 {
		problems = append(problems, "priority table is empty")
	}
	if len(t.Regions) == 0 {
		problems = append(problems, "region table is empty")
	}
	problems = append(problems, blankEntries("ministry", t.Ministries)...)
	problems = append(problems, blankEntries("region", t.Regions)...)
	for i, p := range t.Priorities {
		if strings.TrimSpace(p.Name) == "" {
			problems = append(problems, fmt.Sprintf("priority %d has an empty name", i))
		}
		if p.Weight <= 0 {
			problems = append(problems, fmt.Sprintf("priority %q has non-positive weight %v", p.Name, p.Weight))
		}
	}

	if t.ProjectsCount.Min > t.ProjectsCount.Max {
		problems = append(problems, fmt.Sprintf("projects_count range [%d, %d] is inverted", t.ProjectsCount.Min, t.ProjectsCount.Max))
	}
	for name, r := range map[string]Range{
		"dev_index":   t.DevIndex,
		"prev_budget": t.PrevBudget,
		"gdp_impact":  t.GDPImpact,
		"noise":       t.Noise,
	} {
		if r.Min > r.Max {
			problems = append(problems, fmt.Sprintf("%s range [%v, %v] is inverted", name, r.Min, r.Max))
		}
	}
	if t.PrevBudget.Min <= 0 {
		problems = append(problems, "prev_budget range must be positive")
	}
	// Allocation stays positive only while the multiplier does.
	if 1+t.Noise.Min <= 0 {
		problems = append(problems, fmt.Sprintf("noise minimum %v makes allocations non-positive", t.Noise.Min))
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return &ConfigurationError{Problems: problems}
}

func blankEntries(kind string, values []string) []string {
	var out []string
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			out = append(out, fmt.Sprintf("%s %d is blank", kind, i))
		}
	}
	return out
}

// PriorityNames returns the priority tier names in table order.
func (t Tables) PriorityNames() []string {
	names := make([]string, len(t.Priorities))
	for i, p := range t.Priorities {
		names[i] = p.Name
	}
	return names
}

// Weight looks up the weight of a priority tier, ignoring case.
func (t Tables) Weight(priority string) (float64, bool) {
	for _, p := range t.Priorities {
		if strings.EqualFold(p.Name, strings.TrimSpace(priority)) {
			return p.Weight, true
		}
	}
	return 0, false
}

// MeanWeight is the average priority weight, zero for an empty table.
func (t Tables) MeanWeight() float64 {
	if len(t.Priorities) == 0 {
		return 0
	}
	var sum float64
	for _, p := range t.Priorities {
		sum += p.Weight
	}
	return sum / float64(len(t.Priorities))
}

// Column returns the vocabulary of a categorical column.
func (t Tables) Column(column string) ([]string, bool) {
	switch column {
	case ColMinistry:
		return t.Ministries, true
	case ColPriorityLevel:
		return t.PriorityNames(), true
	case ColRegionImpact:
		return t.Regions, true
	}
	return nil, false
}
