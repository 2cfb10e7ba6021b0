// Package store defines the persistence port for subscriptions and the
// row codec shared by the tabular backends (CSV file, Google Sheets).
package store

import (
	"context"

	"abbonamenti/internal/core"
)

// Store loads and persists the whole subscription list at once.
type Store interface {
	// Load returns every stored subscription in stored order.
	Load(ctx context.Context) ([]core.Subscription, error)
	// Save replaces the stored list with subs, keeping their order.
	Save(ctx context.Context, subs []core.Subscription) error
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}
