package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Subscription is a recurring payment billed on a fixed day of the month.
	Subscription struct {
		ID   string
		Name string
		Cost decimal.Decimal
		Day  int // billing day of month, 1-31
	}

	// Listing is a subscription with the values derived at load time.
	// Neither NextRenewal nor Alert is ever persisted.
	Listing struct {
		Subscription
		NextRenewal time.Time
		Alert       bool
	}
)

var (
	ErrEmptyName   = errors.New("empty name")
	ErrInvalidCost = errors.New("invalid cost")
	ErrInvalidDay  = errors.New("invalid day")
)

// Validate checks the name only; cost sign and day range are not checked.
func (s Subscription) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Equal reports whether both subscriptions hold the same persisted fields.
func (s Subscription) Equal(o Subscription) bool {
	return s.ID == o.ID && s.Name == o.Name && s.Day == o.Day && s.Cost.Equal(o.Cost)
}
