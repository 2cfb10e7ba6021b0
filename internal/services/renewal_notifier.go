package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"abbonamenti/internal/amqp"
	"abbonamenti/internal/core"
	"abbonamenti/internal/store"
)

// AlertPublisher receives one alert per upcoming renewal.
type AlertPublisher interface {
	PublishRenewalAlert(ctx context.Context, alert *amqp.RenewalAlert) error
}

// RenewalNotifier announces renewals entering the alert window. Each
// (subscription, renewal date) pair is announced once per process.
type RenewalNotifier struct {
	store     store.Store
	publisher AlertPublisher

	mu   sync.Mutex
	sent map[string]struct{}
}

func NewRenewalNotifier(st store.Store, publisher AlertPublisher) *RenewalNotifier {
	return &RenewalNotifier{
		store:     st,
		publisher: publisher,
		sent:      make(map[string]struct{}),
	}
}

// ProcessUpcoming publishes alerts not yet sent and returns how many went out.
// A failed publish is retried on the next call.
func (n *RenewalNotifier) ProcessUpcoming(ctx context.Context, now time.Time) (int, error) {
	if n.store == nil || n.publisher == nil {
		return 0, errors.New("notifier not properly initialized")
	}

	subs, err := n.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load subscriptions: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	current := make(map[string]struct{})
	published := 0
	var errs []error

	for _, l := range core.Listings(subs, now) {
		if !l.Alert {
			continue
		}
		if l.ID == "" {
			slog.WarnContext(ctx, "Skipping subscription without id", "name", l.Name)
			continue
		}
		key := alertKey(l)
		current[key] = struct{}{}
		if _, done := n.sent[key]; done {
			continue
		}

		if err := n.publisher.PublishRenewalAlert(ctx, amqp.NewRenewalAlert(l, now)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish renewal alert",
				"id", l.ID,
				"next_renewal", l.NextRenewal.Format(time.DateOnly),
				"error", err)
			errs = append(errs, fmt.Errorf("alert %s: %w", l.ID, err))
			continue
		}
		n.sent[key] = struct{}{}
		published++
	}

	// Forget renewals that left the window so the set stays bounded.
	for key := range n.sent {
		if _, ok := current[key]; !ok {
			delete(n.sent, key)
		}
	}

	slog.InfoContext(ctx, "Renewal scan completed",
		"subscriptions", len(subs),
		"published", published,
		"failed", len(errs))

	return published, errors.Join(errs...)
}

func alertKey(l core.Listing) string {
	return l.ID + "|" + l.NextRenewal.Format(time.DateOnly)
}
