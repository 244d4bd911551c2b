// Package worker mirrors stored predictions to secondary stores.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetsense/internal/amqp"
	"budgetsense/internal/core"
	"budgetsense/internal/storage"
	"budgetsense/internal/store"
)

// Repository is the part of the SQL repository the worker uses.
type Repository interface {
	store.PredictionGetter
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingPrediction, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string, cause error) error
}

// Mirror is a named secondary store, such as Firebase or the Sheets ledger.
type Mirror struct {
	Name   string
	Writer store.PredictionWriter
}

// SyncWorker copies predictions from the SQL repository to every mirror
type SyncWorker struct {
	storage   Repository
	mirrors   []Mirror
	batchSize int
}

func NewSyncWorker(storage Repository, mirrors []Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		mirrors:   mirrors,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single prediction sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.PredictionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID)

	p, err := w.storage.Get(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Nothing to mirror; requeueing would loop forever.
		slog.WarnContext(ctx, "Sync message for unknown prediction, dropping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get prediction from storage: %w", err)
	}

	return w.sync(ctx, p)
}

// ProcessPending mirrors up to one batch of predictions that are not synced.
// This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck processes a larger batch once when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}

	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending predictions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending predictions: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending predictions", "count", len(pending))

	for _, item := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}

		p, err := w.storage.Get(ctx, item.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get prediction", "id", item.ID, "error", err)
			w.markError(ctx, item.ID, err)
			failed++
			continue
		}

		if err := w.sync(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to sync prediction", "id", item.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// sync writes p to every mirror. All mirrors are attempted; any failure
// marks the prediction with a sync error so it is retried later.
func (w *SyncWorker) sync(ctx context.Context, p core.Prediction) error {
	var errs []error
	for _, m := range w.mirrors {
		ref, err := m.Writer.Save(ctx, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
			continue
		}
		slog.DebugContext(ctx, "Prediction mirrored",
			"id", p.ID,
			"mirror", m.Name,
			"ref", ref)
	}

	if err := errors.Join(errs...); err != nil {
		w.markError(ctx, p.ID, err)
		return fmt.Errorf("mirror prediction %s: %w", p.ID, err)
	}

	if err := w.storage.MarkSynced(ctx, p.ID); err != nil {
		// The mirrors already hold the document.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", p.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced prediction",
		"id", p.ID,
		"ministry", p.Ministry,
		"predicted_budget", p.PredictedBudget,
		"mirrors", len(w.mirrors))
	return nil
}

func (w *SyncWorker) markError(ctx context.Context, id string, cause error) {
	if err := w.storage.MarkSyncError(ctx, id, cause); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", err)
	}
}
