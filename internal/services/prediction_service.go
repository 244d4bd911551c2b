// Package services holds the prediction pipeline and the background sync loop.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetsense/internal/core"
	"budgetsense/internal/log"
	"budgetsense/internal/model"
	"budgetsense/internal/reasoner"
	"budgetsense/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Encoder is the categorical encoder the pipeline needs.
type Encoder interface {
	reasoner.Encoder
	Labeler
	Encode(column, label string) int
}

// Result is the outcome of one batch item: a prediction or its own error.
type Result struct {
	Prediction *core.Prediction
	Err        error
}

// PredictionService orchestrates encode, predict, explain and persist.
type PredictionService struct {
	oracle   model.Oracle
	encoders Encoder
	reasoner *reasoner.Reasoner
	writer   store.PredictionWriter
	logger   *log.StructuredLogger

	batchWorkers int
	now          func() time.Time
	newID        func() string
}

// Option customises a PredictionService.
type Option func(*PredictionService)

// WithClock sets the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *PredictionService) { s.now = now }
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(newID func() string) Option {
	return func(s *PredictionService) { s.newID = newID }
}

// WithBatchWorkers bounds how many batch items run at once.
func WithBatchWorkers(n int) Option {
	return func(s *PredictionService) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

// NewPredictionService wires the pipeline. writer may be nil, in which case
// predictions are served but not stored.
func NewPredictionService(oracle model.Oracle, encoders Encoder, writer store.PredictionWriter, opts ...Option) *PredictionService {
	s := &PredictionService{
		oracle:       oracle,
		encoders:     encoders,
		reasoner:     reasoner.New(encoders),
		writer:       writer,
		logger:       log.NewStructuredLogger(log.New(log.Config{Component: log.ComponentPredict, Handler: slog.Default().Handler()})),
		batchWorkers: 4,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PredictOne serves a single request object. The oracle's unrounded output
// feeds the reasoner; the stored and returned prediction is rounded to 2dp.
// A store failure is logged and the prediction is returned without an ID.
func (s *PredictionService) PredictOne(ctx context.Context, raw map[string]any) (core.Prediction, error) {
	req, err := ParseRequest(raw)
	if err != nil {
		return core.Prediction{}, err
	}

	features := req.Features(s.encoders.Encode, s.encoders)

	predicted, err := s.oracle.Predict(ctx, features)
	if err != nil {
		if errors.Is(err, core.ErrModelUnavailable) {
			return core.Prediction{}, err
		}
		return core.Prediction{}, fmt.Errorf("predict: %w", err)
	}

	var reasons []string
	if req.Expected != nil {
		reasons = s.reasoner.Explain(reasoner.FromRecord(features), predicted, *req.Expected)
	}

	p := core.NewPrediction(features, predicted, req.Expected, reasons, s.now())
	p.ID = s.newID()

	if s.writer != nil {
		if _, err := s.writer.Save(ctx, p); err != nil {
			s.logger.LogError(ctx, "Failed to store prediction", err,
				log.ErrorTypeDatabase, log.ComponentStorage, log.OpSave,
				log.NewFields().WithPrediction(p.ID, p.Ministry, p.PriorityLevel, p.PredictedBudget, p.ExpectedBudget))
			p.ID = ""
		}
	} else {
		p.ID = ""
	}

	s.logger.LogPrediction(ctx, p.ID, p.Ministry, p.PriorityLevel, p.PredictedBudget, p.ExpectedBudget, len(reasons))
	return p, nil
}

// PredictBatch serves every item independently. Results keep input order
// and one failing item never affects the others.
func (s *PredictionService) PredictBatch(ctx context.Context, items []map[string]any) []Result {
	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(s.batchWorkers)
	for i, raw := range items {
		g.Go(func() error {
			p, err := s.PredictOne(ctx, raw)
			if err != nil {
				results[i] = Result{Err: err}
				return nil
			}
			results[i] = Result{Prediction: &p}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
