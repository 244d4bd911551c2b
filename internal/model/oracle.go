package model

import (
	"context"
	"fmt"
	"time"

	"budgetsense/internal/core"
	"budgetsense/internal/generator"
)

// Oracle predicts the allocated budget of an encoded feature record.
type Oracle interface {
	Predict(ctx context.Context, f core.FeatureRecord) (float64, error)
}

// FormulaOracle predicts the expected allocation of the generating formula,
// with noise at the midpoint of its range. A priority tier the tables do
// not know is weighted with the mean tier weight.
type FormulaOracle struct {
	tables core.Tables
	noise  float64
}

// NewFormulaOracle returns a FormulaOracle over tables.
func NewFormulaOracle(tables core.Tables) (*FormulaOracle, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("formula oracle tables: %w", err)
	}
	return &FormulaOracle{
		tables: tables.Clone(),
		noise:  (tables.Noise.Min + tables.Noise.Max) / 2,
	}, nil
}

func (o *FormulaOracle) Predict(ctx context.Context, f core.FeatureRecord) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	weight, ok := o.tables.Weight(f.PriorityLevel.Label)
	if !ok {
		weight = o.tables.MeanWeight()
	}
	return generator.Allocate(f.PrevBudget, f.DevIndex, weight, f.GDPImpact, o.noise), nil
}

// Ready always succeeds; the formula needs nothing loaded.
func (o *FormulaOracle) Ready(context.Context) error { return nil }

// Unavailable is the oracle used when no model is configured.
type Unavailable struct{}

func (Unavailable) Predict(context.Context, core.FeatureRecord) (float64, error) {
	return 0, core.ErrModelUnavailable
}

func (Unavailable) Ready(context.Context) error { return core.ErrModelUnavailable }

// New returns the oracle named by kind: "formula", "remote" or "none".
func New(kind, url string, timeout time.Duration, tables core.Tables) (Oracle, error) {
	switch kind {
	case "formula":
		o, err := NewFormulaOracle(tables)
		if err != nil {
			return nil, err
		}
		return o, nil
	case "remote":
		if url == "" {
			return nil, fmt.Errorf("remote model requires a URL")
		}
		return NewRemoteOracle(url, timeout), nil
	case "none":
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unsupported model backend: %s", kind)
	}
}
