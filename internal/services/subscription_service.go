package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"abbonamenti/internal/amqp"
	"abbonamenti/internal/core"
	"abbonamenti/internal/store"
)

// EventPublisher receives an event after each persisted mutation.
type EventPublisher interface {
	PublishSubscriptionEvent(ctx context.Context, ev *amqp.SubscriptionEvent) error
}

// SubscriptionService runs every operation as load, mutate in memory, save.
// The mutex serializes that cycle inside one process only.
type SubscriptionService struct {
	mu        sync.Mutex
	store     store.Store
	publisher EventPublisher
	now       func() time.Time
	newID     func() string
}

type Option func(*SubscriptionService)

// WithPublisher enables mutation events. A nil publisher disables them.
func WithPublisher(p EventPublisher) Option {
	return func(s *SubscriptionService) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *SubscriptionService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *SubscriptionService) { s.newID = newID }
}

func NewSubscriptionService(st store.Store, opts ...Option) *SubscriptionService {
	s := &SubscriptionService{
		store: st,
		now:   time.Now,
		newID: store.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the sorted overview as of the service clock.
func (s *SubscriptionService) List(ctx context.Context, field core.SortField, dir core.Direction) (core.Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx)
	if err != nil {
		return core.Overview{}, err
	}
	return core.BuildOverview(subs, s.now(), field, dir), nil
}

// Add appends a new subscription with a fresh id.
func (s *SubscriptionService) Add(ctx context.Context, name string, cost decimal.Decimal, day int) (core.Subscription, error) {
	sub := core.Subscription{Name: name, Cost: cost, Day: day}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx)
	if err != nil {
		return core.Subscription{}, err
	}
	sub.ID = s.newID()
	subs = append(subs, sub)
	if err := s.save(ctx, subs); err != nil {
		return core.Subscription{}, err
	}

	s.publish(ctx, amqp.EventCreated, sub)
	return sub, nil
}

// Edit overwrites name, cost and day of the subscription with id, keeping its
// id and position. It reports false, and saves nothing, when id is unknown.
func (s *SubscriptionService) Edit(ctx context.Context, id, name string, cost decimal.Decimal, day int) (bool, error) {
	updated := core.Subscription{ID: id, Name: name, Cost: cost, Day: day}
	if err := updated.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	i := indexOf(subs, id)
	if i < 0 {
		slog.InfoContext(ctx, "Edit of unknown subscription ignored", "id", id)
		return false, nil
	}
	subs[i] = updated
	if err := s.save(ctx, subs); err != nil {
		return false, err
	}

	s.publish(ctx, amqp.EventUpdated, updated)
	return true, nil
}

// Delete removes the subscription with id. It reports false, and saves
// nothing, when id is unknown.
func (s *SubscriptionService) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	i := indexOf(subs, id)
	if i < 0 {
		slog.InfoContext(ctx, "Delete of unknown subscription ignored", "id", id)
		return false, nil
	}
	removed := subs[i]
	subs = append(subs[:i], subs[i+1:]...)
	if err := s.save(ctx, subs); err != nil {
		return false, err
	}

	s.publish(ctx, amqp.EventDeleted, removed)
	return true, nil
}

// BackfillIDs assigns ids to records lacking one (or sharing one) and
// persists the result. It returns how many ids were assigned.
func (s *SubscriptionService) BackfillIDs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load subscriptions: %w", err)
	}
	return s.backfill(ctx, subs)
}

// load reads the list and repairs ids before anyone sees them.
func (s *SubscriptionService) load(ctx context.Context) ([]core.Subscription, error) {
	subs, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	if store.NeedsBackfill(subs) {
		if _, err := s.backfill(ctx, subs); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (s *SubscriptionService) backfill(ctx context.Context, subs []core.Subscription) (int, error) {
	n := store.BackfillIDs(subs, s.newID)
	if n == 0 {
		return 0, nil
	}
	if err := s.save(ctx, subs); err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Backfilled subscription ids", "assigned", n)
	return n, nil
}

func (s *SubscriptionService) save(ctx context.Context, subs []core.Subscription) error {
	if err := s.store.Save(ctx, subs); err != nil {
		return fmt.Errorf("save subscriptions: %w", err)
	}
	return nil
}

// publish is best effort: the mutation is already saved.
func (s *SubscriptionService) publish(ctx context.Context, t amqp.EventType, sub core.Subscription) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSubscriptionEvent(ctx, amqp.NewSubscriptionEvent(t, sub)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish subscription event",
			"type", t,
			"id", sub.ID,
			"error", err)
	}
}

func indexOf(subs []core.Subscription, id string) int {
	for i, s := range subs {
		if s.ID == id {
			return i
		}
	}
	return -1
}
