// Package reasoner explains the gap between a predicted and an expected
// budget allocation with a fixed, ordered set of rules.
package reasoner

import (
	"encoding/json"
	"math"
	"strconv"

	"budgetsense/internal/core"
)

// Encoder maps a categorical label to its integer code.
type Encoder interface {
	Transform(column, label string) (int, error)
}

// Features are the record fields the rules look at.
type Features struct {
	PriorityCode  int
	DevIndex      float64
	GDPImpact     float64
	ProjectsCount int
}

// DefaultFeatures are used for every field the caller does not supply.
func DefaultFeatures() Features {
	return Features{
		PriorityCode:  core.Unknown,
		DevIndex:      1,
		GDPImpact:     2,
		ProjectsCount: 0,
	}
}

// FromRecord takes the rule inputs from an encoded feature record.
func FromRecord(f core.FeatureRecord) Features {
	return Features{
		PriorityCode:  f.PriorityLevel.Code,
		DevIndex:      f.DevIndex,
		GDPImpact:     f.GDPImpact,
		ProjectsCount: f.ProjectsCount,
	}
}

// Field aliases accepted by FeaturesFromMap, canonical name first.
var (
	priorityKeys = []string{core.ColPriorityLevel, "priority_level"}
	devIndexKeys = []string{core.ColDevIndex, "dev_index"}
	gdpKeys      = []string{core.ColGDPImpact, "GDP_Impact", "gdp_impact"}
	projectKeys  = []string{core.ColProjectsCount, "projects_count"}
)

// FeaturesFromMap reads rule inputs from a decoded JSON object. Absent or
// non-numeric values keep their defaults. The priority may be a label,
// encoded with enc, or an integer code.
func FeaturesFromMap(m map[string]any, enc Encoder) Features {
	f := DefaultFeatures()

	if v, ok := lookup(m, priorityKeys); ok {
		switch p := v.(type) {
		case string:
			if enc != nil {
				if code, err := enc.Transform(core.ColPriorityLevel, p); err == nil {
					f.PriorityCode = code
				}
			}
		default:
			if n, ok := number(p); ok && n == math.Trunc(n) {
				f.PriorityCode = int(n)
			}
		}
	}
	if n, ok := lookupNumber(m, devIndexKeys); ok {
		f.DevIndex = n
	}
	if n, ok := lookupNumber(m, gdpKeys); ok {
		f.GDPImpact = n
	}
	if n, ok := lookupNumber(m, projectKeys); ok && n == math.Trunc(n) {
		f.ProjectsCount = int(n)
	}
	return f
}

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupNumber(m map[string]any, keys []string) (float64, bool) {
	v, ok := lookup(m, keys)
	if !ok {
		return 0, false
	}
	return number(v)
}

// number accepts the numeric types a JSON decoder or a Go caller produces.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

// Reasoner evaluates the explanation rules in a fixed order.
type Reasoner struct {
	rules []Rule
}

// New returns a Reasoner. enc encodes the "high" priority label for the
// high-priority rule; a nil enc disables that rule.
func New(enc Encoder) *Reasoner {
	return &Reasoner{rules: []Rule{
		highPriorityRule{encoder: enc},
		lowDevIndexRule,
		lowGDPImpactRule,
		manyProjectsRule,
		largeDeviationRule,
	}}
}

// Rules returns the rules in evaluation order.
func (r *Reasoner) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Explain returns the message of every matching rule in rule order, or
// only the fallback message when none match. It never fails.
func (r *Reasoner) Explain(f Features, predicted, expected float64) []string {
	d := NewDeviation(predicted, expected)
	var reasons []string
	for _, rule := range r.rules {
		if rule.Match(f, d) {
			reasons = append(reasons, rule.Message())
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, MsgInLine)
	}
	return reasons
}
