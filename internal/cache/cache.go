// Package cache provides a small generic cache used to spare remote reads.
package cache

// Cache is a string-keyed store of values of one type.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Stats counts lookups.
type Stats struct {
	Hits   int64
	Misses int64
}
