package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"budgetsense/internal/core"
)

// Accepted spellings of each request field, canonical corpus name first.
var fieldKeys = map[string][]string{
	core.ColMinistry:      {core.ColMinistry, "ministry"},
	core.ColPriorityLevel: {core.ColPriorityLevel, "priority_level"},
	core.ColProjectsCount: {core.ColProjectsCount, "projects_count"},
	core.ColRegionImpact:  {core.ColRegionImpact, "region_impact"},
	core.ColDevIndex:      {core.ColDevIndex, "dev_index"},
	core.ColPrevBudget:    {core.ColPrevBudget, "Prev_Budget", "prev_budget"},
	core.ColGDPImpact:     {core.ColGDPImpact, "GDP_Impact", "gdp_impact"},
}

var expectedKeys = []string{"Expected_Budget", "expected_budget"}

// Request is one parsed prediction request.
type Request struct {
	Ministry      string
	PriorityLevel string
	RegionImpact  string
	ProjectsCount int
	DevIndex      float64
	PrevBudget    float64
	GDPImpact     float64

	// Expected is the caller's expected allocation, nil when absent.
	Expected *float64

	// codes holds categoricals sent as integer codes instead of labels.
	codes map[string]int
}

// Labeler decodes a categorical code back to its label.
type Labeler interface {
	Inverse(column string, code int) (string, error)
}

// ParseRequest reads a decoded JSON object. Categoricals may be labels or
// integer codes; numerics may be numbers or numeric strings. A missing or
// unusable field yields a MalformedRequestError naming it.
func ParseRequest(raw map[string]any) (Request, error) {
	if raw == nil {
		return Request{}, core.Malformed("", "expected a JSON object")
	}
	req := Request{codes: map[string]int{}}

	for _, col := range core.CategoricalColumns {
		v, key, ok := lookup(raw, fieldKeys[col])
		if !ok {
			return Request{}, core.Malformed(col, "is required")
		}
		switch t := v.(type) {
		case string:
			label := strings.TrimSpace(t)
			if label == "" {
				return Request{}, core.Malformed(key, "must not be empty")
			}
			req.setLabel(col, label)
		default:
			n, ok := toNumber(v)
			if !ok || n != math.Trunc(n) {
				return Request{}, core.Malformed(key, "must be a label or an integer code")
			}
			req.codes[col] = int(n)
		}
	}

	projects, err := number(raw, core.ColProjectsCount)
	if err != nil {
		return Request{}, err
	}
	if projects != math.Trunc(projects) {
		return Request{}, core.Malformed(core.ColProjectsCount, "must be an integer")
	}
	req.ProjectsCount = int(projects)

	if req.DevIndex, err = number(raw, core.ColDevIndex); err != nil {
		return Request{}, err
	}
	if req.PrevBudget, err = number(raw, core.ColPrevBudget); err != nil {
		return Request{}, err
	}
	if req.GDPImpact, err = number(raw, core.ColGDPImpact); err != nil {
		return Request{}, err
	}

	if v, key, ok := lookup(raw, expectedKeys); ok {
		n, ok := toNumber(v)
		if !ok {
			return Request{}, core.Malformed(key, "must be a number")
		}
		req.Expected = &n
	}

	return req, nil
}

func (r *Request) setLabel(col, label string) {
	switch col {
	case core.ColMinistry:
		r.Ministry = label
	case core.ColPriorityLevel:
		r.PriorityLevel = label
	case core.ColRegionImpact:
		r.RegionImpact = label
	}
}

func (r *Request) label(col string) string {
	switch col {
	case core.ColMinistry:
		return r.Ministry
	case core.ColPriorityLevel:
		return r.PriorityLevel
	default:
		return r.RegionImpact
	}
}

// Features encodes the request. Labels outside the vocabulary get
// core.Unknown; codes are decoded to labels where the encoder knows them.
func (r Request) Features(encode func(column, label string) int, labels Labeler) core.FeatureRecord {
	for col, code := range r.codes {
		label := strconv.Itoa(code)
		if labels != nil {
			if l, err := labels.Inverse(col, code); err == nil {
				label = l
			}
		}
		r.setLabel(col, label)
	}

	category := func(col string) core.Category {
		if code, ok := r.codes[col]; ok {
			return core.Category{Label: r.label(col), Code: code}
		}
		return core.Category{Label: r.label(col), Code: encode(col, r.label(col))}
	}

	return core.FeatureRecord{
		Ministry:      category(core.ColMinistry),
		PriorityLevel: category(core.ColPriorityLevel),
		RegionImpact:  category(core.ColRegionImpact),
		ProjectsCount: r.ProjectsCount,
		DevIndex:      r.DevIndex,
		PrevBudget:    r.PrevBudget,
		GDPImpact:     r.GDPImpact,
	}
}

func lookup(raw map[string]any, keys []string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

func number(raw map[string]any, col string) (float64, error) {
	v, key, ok := lookup(raw, fieldKeys[col])
	if !ok {
		return 0, core.Malformed(col, "is required")
	}
	n, ok := toNumber(v)
	if !ok {
		return 0, core.Malformed(key, "must be a number")
	}
	return n, nil
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
