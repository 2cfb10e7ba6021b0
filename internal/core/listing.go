package core

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SortByNextRenewal  SortField = "next_renewal"
	SortByCost         SortField = "cost"
	SortByAlphabetical SortField = "alphabetical"

	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

type (
	SortField string
	Direction string

	// Overview is the list view: sorted listings plus the aggregates.
	Overview struct {
		Items     []Listing
		Total     decimal.Decimal
		SortBy    SortField
		Direction Direction
		Upcoming  int // listings inside the alert window
	}
)

// ParseSortField maps a query value to a sort field, defaulting to next renewal.
func ParseSortField(s string) SortField {
	switch f := SortField(strings.TrimSpace(s)); f {
	case SortByCost, SortByAlphabetical:
		return f
	default:
		return SortByNextRenewal
	}
}

// ParseDirection maps a query value to a direction; only "desc" reverses.
func ParseDirection(s string) Direction {
	if Direction(strings.TrimSpace(s)) == Descending {
		return Descending
	}
	return Ascending
}

// Listings derives the renewal date and alert flag for every subscription,
// keeping stored order.
func Listings(subs []Subscription, now time.Time) []Listing {
	out := make([]Listing, len(subs))
	for i, s := range subs {
		next := NextRenewal(s.Day, now)
		out[i] = Listing{
			Subscription: s,
			NextRenewal:  next,
			Alert:        IsAlert(next, now),
		}
	}
	return out
}

// Sort orders listings in place. The sort is stable in both directions:
// listings with equal keys keep their stored order.
func Sort(items []Listing, field SortField, dir Direction) {
	compare := comparator(field)
	if dir == Descending {
		slices.SortStableFunc(items, func(a, b Listing) int { return compare(b, a) })
		return
	}
	slices.SortStableFunc(items, compare)
}

func comparator(field SortField) func(a, b Listing) int {
	switch field {
	case SortByCost:
		return func(a, b Listing) int { return a.Cost.Cmp(b.Cost) }
	case SortByAlphabetical:
		return func(a, b Listing) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	default:
		return func(a, b Listing) int { return a.NextRenewal.Compare(b.NextRenewal) }
	}
}

// TotalCost sums the cost of every subscription.
func TotalCost(subs []Subscription) decimal.Decimal {
	total := decimal.Zero
	for _, s := range subs {
		total = total.Add(s.Cost)
	}
	return total
}

// BuildOverview runs the whole list pipeline: derive, sort, aggregate.
func BuildOverview(subs []Subscription, now time.Time, field SortField, dir Direction) Overview {
	items := Listings(subs, now)
	Sort(items, field, dir)

	upcoming := 0
	for _, it := range items {
		if it.Alert {
			upcoming++
		}
	}
	return Overview{
		Items:     items,
		Total:     TotalCost(subs),
		SortBy:    field,
		Direction: dir,
		Upcoming:  upcoming,
	}
}
