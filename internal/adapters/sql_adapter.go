package adapters

import (
	"context"
	"fmt"
	"log/slog"

	"budgetsense/internal/core"
	"budgetsense/internal/storage"
	"budgetsense/internal/store"
)

// SyncPublisher announces that a stored prediction needs mirroring.
type SyncPublisher interface {
	PublishPredictionSync(ctx context.Context, id string) error
}

var (
	_ store.Store  = (*SQLAdapter)(nil)
	_ store.Pinger = (*SQLAdapter)(nil)
)

// SQLAdapter stores predictions in the SQL repository and publishes a sync
// event for each one, so the serving layer sees a plain store.Store.
type SQLAdapter struct {
	storage   *storage.Repository
	publisher SyncPublisher
}

// NewSQLAdapter wires repo and an optional publisher.
func NewSQLAdapter(repo *storage.Repository, publisher SyncPublisher) *SQLAdapter {
	return &SQLAdapter{
		storage:   repo,
		publisher: publisher,
	}
}

// Save stores p first and then publishes its sync event. A failed publish is
// only logged: the row stays pending and the worker's poll picks it up.
func (a *SQLAdapter) Save(ctx context.Context, p core.Prediction) (string, error) {
	id, err := a.storage.Save(ctx, p)
	if err != nil {
		return "", fmt.Errorf("save prediction: %w", err)
	}

	if a.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping sync message", "id", id)
		return id, nil
	}
	if err := a.publisher.PublishPredictionSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}

	return id, nil
}

func (a *SQLAdapter) All(ctx context.Context) (map[string]core.Prediction, error) {
	return a.storage.All(ctx)
}

func (a *SQLAdapter) Get(ctx context.Context, id string) (core.Prediction, error) {
	return a.storage.Get(ctx, id)
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
