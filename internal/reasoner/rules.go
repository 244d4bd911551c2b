package reasoner

import (
	"math"

	"budgetsense/internal/core"
)

// Explanation messages, one per rule, plus the fallback.
const (
	MsgHighPriorityUnderrun = "Despite being high priority, budget allocation is lower than expected."
	MsgLowDevIndex          = "Low development index could have impacted reduced allocation."
	MsgLowGDPImpact         = "Low GDP impact of the ministry might have reduced the allocation."
	MsgManyProjects         = "Although there are many projects, the budget allocation is lower."
	MsgLargeDeviation       = "Large deviation observed in allocated vs expected budget."
	MsgInLine               = "Allocation seems in line with expectations or is driven by overall national priorities."
)

// Thresholds used by the rules.
const (
	LowDevIndex       = 0.4
	LowGDPImpact      = 1.0
	ManyProjects      = 10
	LargeDeviationPct = 30.0
	HighPriorityLabel = "high"
)

// Deviation is the gap between a prediction and the caller's expectation.
type Deviation struct {
	Predicted   float64
	Expected    float64
	Diff        float64
	PercentDiff float64
}

// NewDeviation computes the gap. PercentDiff is zero when expected is zero.
func NewDeviation(predicted, expected float64) Deviation {
	d := Deviation{
		Predicted: predicted,
		Expected:  expected,
		Diff:      predicted - expected,
	}
	if expected != 0 {
		d.PercentDiff = 100 * d.Diff / expected
	}
	return d
}

// Underrun reports whether the prediction is below the expectation.
func (d Deviation) Underrun() bool { return d.Diff < 0 }

// Rule is one deterministic explanation rule.
type Rule interface {
	// ID identifies the rule in logs.
	ID() string

	// Match reports whether the rule applies.
	Match(f Features, d Deviation) bool

	// Message is appended to the explanation when Match is true.
	Message() string
}

type highPriorityRule struct {
	encoder Encoder
}

func (highPriorityRule) ID() string      { return "high_priority_underrun" }
func (highPriorityRule) Message() string { return MsgHighPriorityUnderrun }

// Match compares the record's encoded priority with the encoding of "high".
// Without an encoder, or when "high" cannot be encoded, the rule does not fire.
func (r highPriorityRule) Match(f Features, d Deviation) bool {
	if r.encoder == nil || !d.Underrun() {
		return false
	}
	high, err := r.encoder.Transform(core.ColPriorityLevel, HighPriorityLabel)
	if err != nil || high == core.Unknown {
		return false
	}
	return f.PriorityCode == high
}

type thresholdRule struct {
	id      string
	message string
	match   func(Features, Deviation) bool
}

func (r thresholdRule) ID() string                         { return r.id }
func (r thresholdRule) Message() string                    { return r.message }
func (r thresholdRule) Match(f Features, d Deviation) bool { return r.match(f, d) }

var (
	lowDevIndexRule = thresholdRule{
		id:      "low_dev_index",
		message: MsgLowDevIndex,
		match: func(f Features, d Deviation) bool {
			return f.DevIndex < LowDevIndex && d.Underrun()
		},
	}
	lowGDPImpactRule = thresholdRule{
		id:      "low_gdp_impact",
		message: MsgLowGDPImpact,
		match: func(f Features, d Deviation) bool {
			return f.GDPImpact < LowGDPImpact && d.Underrun()
		},
	}
	manyProjectsRule = thresholdRule{
		id:      "many_projects",
		message: MsgManyProjects,
		match: func(f Features, d Deviation) bool {
			return f.ProjectsCount > ManyProjects && d.Underrun()
		},
	}
	largeDeviationRule = thresholdRule{
		id:      "large_deviation",
		message: MsgLargeDeviation,
		match: func(_ Features, d Deviation) bool {
			return math.Abs(d.PercentDiff) > LargeDeviationPct
		},
	}
)
