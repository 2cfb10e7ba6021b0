package store

import (
	"github.com/google/uuid"

	"abbonamenti/internal/core"
)

// NewID returns a fresh opaque subscription id.
func NewID() string {
	return uuid.NewString()
}

// BackfillIDs assigns an id to every subscription missing one, and a new id to
// every later duplicate of an id already seen. It mutates subs in place and
// returns how many records changed; the caller persists the result.
func BackfillIDs(subs []core.Subscription, newID func() string) int {
	if newID == nil {
		newID = NewID
	}
	seen := make(map[string]struct{}, len(subs))
	changed := 0
	for i := range subs {
		if _, dup := seen[subs[i].ID]; subs[i].ID == "" || dup {
			subs[i].ID = newID()
			changed++
		}
		seen[subs[i].ID] = struct{}{}
	}
	return changed
}

// NeedsBackfill reports whether any id is missing or repeated.
func NeedsBackfill(subs []core.Subscription) bool {
	seen := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		if _, dup := seen[s.ID]; s.ID == "" || dup {
			return true
		}
		seen[s.ID] = struct{}{}
	}
	return false
}
