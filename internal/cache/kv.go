package cache

import "time"

// KV defines the flat key-value contract with TTL semantics that drivers
// build on. Implementations must be safe for concurrent use by multiple
// goroutines.
//
// Put interprets ttl as follows: ttl > 0 expires the entry after ttl,
// ttl == 0 stores an entry that is already expired, and ttl < 0 applies the
// store's default lifetime.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	// Flush removes every entry.
	Flush() error
	// Keys lists the live entries currently held.
	Keys() ([]EntryInfo, error)
}

// EntryInfo describes one stored entry without its value.
type EntryInfo struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Size      int       `json:"size"`
}

// DefaultTTL asks Put to use the store's configured default lifetime.
const DefaultTTL time.Duration = -1
