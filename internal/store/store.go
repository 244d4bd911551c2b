// Package store declares the persistence ports for served predictions.
package store

import (
	"context"

	"budgetsense/internal/core"
)

// Ports for outbound adapters.
type (
	// PredictionWriter persists a prediction under its ID and returns the ID.
	PredictionWriter interface {
		Save(ctx context.Context, p core.Prediction) (id string, err error)
	}

	// PredictionReader returns every stored prediction keyed by ID.
	PredictionReader interface {
		All(ctx context.Context) (map[string]core.Prediction, error)
	}

	// PredictionGetter loads one prediction. Missing IDs wrap core.ErrNotFound.
	PredictionGetter interface {
		Get(ctx context.Context, id string) (core.Prediction, error)
	}

	// Pinger is implemented by backends that can report their health.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full read/write surface the serving layer needs.
	Store interface {
		PredictionWriter
		PredictionReader
		PredictionGetter
	}
)
