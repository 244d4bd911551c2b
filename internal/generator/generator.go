// Package generator produces synthetic ministry budget records for
// training-corpus construction.
package generator

import (
	"fmt"
	"math/rand/v2"

	"budgetsense/internal/core"
)

// Generator draws independent budget records from one random source.
// A Generator is not safe for concurrent use; give each goroutine its own.
type Generator struct {
	tables core.Tables
	rng    *rand.Rand
	noise  func() float64
}

// Option customises a Generator.
type Option func(*Generator)

// WithFixedNoise pins the noise term instead of drawing it.
func WithFixedNoise(n float64) Option {
	return func(g *Generator) {
		g.noise = func() float64 { return n }
	}
}

// New returns a Generator over tables reading from src.
// It fails with a ConfigurationError when a table is empty or a range is invalid.
func New(tables core.Tables, src rand.Source, opts ...Option) (*Generator, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("generator tables: %w", err)
	}
	g := &Generator{
		tables: tables.Clone(),
		rng:    rand.New(src),
	}
	g.noise = func() float64 { return g.uniform(g.tables.Noise) }
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewSeeded returns a Generator reading from a PCG source seeded with (seed, stream).
func NewSeeded(tables core.Tables, seed, stream uint64, opts ...Option) (*Generator, error) {
	return New(tables, rand.NewPCG(seed, stream), opts...)
}

// Record draws one budget record.
func (g *Generator) Record() core.BudgetRecord {
	t := g.tables
	priority := t.Priorities[g.rng.IntN(len(t.Priorities))]

	r := core.BudgetRecord{
		Ministry:      t.Ministries[g.rng.IntN(len(t.Ministries))],
		PriorityLevel: priority.Name,
		ProjectsCount: t.ProjectsCount.Min + g.rng.IntN(t.ProjectsCount.Max-t.ProjectsCount.Min+1),
		RegionImpact:  t.Regions[g.rng.IntN(len(t.Regions))],
		DevIndex:      core.Round2(g.uniform(t.DevIndex)),
		PrevBudget:    core.Round2(g.uniform(t.PrevBudget)),
		GDPImpact:     core.Round2(g.uniform(t.GDPImpact)),
	}
	r.AllocatedBudget = Allocate(r.PrevBudget, r.DevIndex, priority.Weight, r.GDPImpact, g.noise())
	return r
}

func (g *Generator) uniform(r core.Range) float64 {
	return r.Min + g.rng.Float64()*(r.Max-r.Min)
}

// Allocate applies the allocation formula:
//
//	round(prev * (1 + 0.3*dev + 0.2*weight + 0.1*gdp + noise), 2)
func Allocate(prevBudget, devIndex, priorityWeight, gdpImpact, noise float64) float64 {
	growth := 1 +
		core.DevIndexCoefficient*devIndex +
		core.PriorityCoefficient*priorityWeight +
		core.GDPImpactCoefficient*gdpImpact +
		noise
	return core.Round2(prevBudget * growth)
}
