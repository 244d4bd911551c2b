// Package memory is the in-process prediction store used by default and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"budgetsense/internal/core"
	"budgetsense/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	items map[string]core.Prediction
}

func New() *Store {
	return &Store{items: make(map[string]core.Prediction)}
}

// Save stores a copy of p under p.ID, replacing any earlier document.
func (s *Store) Save(_ context.Context, p core.Prediction) (string, error) {
	if p.ID == "" {
		return "", errors.New("prediction id is required")
	}
	p.Reasoning = slices.Clone(p.Reasoning)
	if p.ExpectedBudget != nil {
		v := *p.ExpectedBudget
		p.ExpectedBudget = &v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = p
	return p.ID, nil
}

func (s *Store) All(_ context.Context) (map[string]core.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.items), nil
}

func (s *Store) Get(_ context.Context, id string) (core.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return core.Prediction{}, fmt.Errorf("prediction %s: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len reports how many predictions are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
