// Package memory keeps subscriptions in process memory. It backs tests and
// throwaway local runs.
package memory

import (
	"context"
	"sync"

	"abbonamenti/internal/core"
	"abbonamenti/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	items []core.Subscription

	// LoadErr and SaveErr, when set, are returned by the next calls.
	LoadErr error
	SaveErr error

	saves int
}

func New(seed ...core.Subscription) *Store {
	return &Store{items: append([]core.Subscription(nil), seed...)}
}

// Load returns a copy of the stored list.
func (s *Store) Load(_ context.Context) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return append([]core.Subscription{}, s.items...), nil
}

// Save replaces the stored list with a copy of subs.
func (s *Store) Save(_ context.Context, subs []core.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.items = append([]core.Subscription{}, subs...)
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
