// Package worker runs the renewal alert loop of cmd/renewal-worker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"abbonamenti/internal/amqp"
)

// Scanner publishes alerts for renewals inside the alert window.
type Scanner interface {
	ProcessUpcoming(ctx context.Context, now time.Time) (int, error)
}

// EventSource delivers subscription events until ctx is done.
type EventSource interface {
	ConsumeSubscriptionEvents(ctx context.Context, handler func(context.Context, *amqp.SubscriptionEvent) error) error
}

// RenewalWorker scans on a fixed interval and again after every
// subscription event, since any edit may move a renewal into the window.
type RenewalWorker struct {
	scanner    Scanner
	events     EventSource
	interval   time.Duration
	retryDelay time.Duration
	now        func() time.Time

	rescan chan struct{}
}

func NewRenewalWorker(scanner Scanner, events EventSource, interval time.Duration) *RenewalWorker {
	return &RenewalWorker{
		scanner:    scanner,
		events:     events,
		interval:   interval,
		retryDelay: 5 * time.Second,
		now:        time.Now,
		rescan:     make(chan struct{}, 1),
	}
}

// Run scans once immediately, then until ctx is done. It returns nil on
// cancellation. A nil event source disables event-driven rescans.
func (w *RenewalWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.Scan(gctx)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				w.Scan(gctx)
			case <-w.rescan:
				w.Scan(gctx)
			}
		}
	})

	if w.events != nil {
		g.Go(func() error {
			for {
				err := w.events.ConsumeSubscriptionEvents(gctx, w.HandleSubscriptionEvent)
				if gctx.Err() != nil {
					return nil
				}
				slog.WarnContext(gctx, "Event consumer stopped, retrying", "error", err, "delay", w.retryDelay)
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(w.retryDelay):
				}
			}
		})
	}

	return g.Wait()
}

// HandleSubscriptionEvent requests a rescan. Requests coalesce while one
// is pending.
func (w *RenewalWorker) HandleSubscriptionEvent(ctx context.Context, ev *amqp.SubscriptionEvent) error {
	slog.DebugContext(ctx, "Subscription event received", "type", ev.Type, "id", ev.ID)
	select {
	case w.rescan <- struct{}{}:
	default:
	}
	return nil
}

// Scan runs one pass and logs the outcome.
func (w *RenewalWorker) Scan(ctx context.Context) {
	count, err := w.scanner.ProcessUpcoming(ctx, w.now())
	if err != nil {
		slog.ErrorContext(ctx, "Renewal scan failed", "error", err, "alerts_sent", count)
		return
	}
	slog.InfoContext(ctx, "Renewal scan complete", "alerts_sent", count)
}
