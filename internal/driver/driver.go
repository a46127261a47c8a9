// Package driver defines the storage-driver contract shared by every cache
// backend, and the host driver that stores entries in the hostcached daemon.
//
// Drivers address entries by key path, an ordered list of segments. Clearing
// a path invalidates the entry at that path and everything below it.
package driver

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable is wrapped by construction errors when the backing
	// facility is absent or disabled for the calling context.
	ErrUnavailable = errors.New("driver: backend unavailable")
	// ErrInvalidOption reports a recognized option with an unusable value.
	ErrInvalidOption = errors.New("driver: invalid option")
)

// Driver is implemented by every interchangeable cache backend.
type Driver interface {
	// GetData returns the entry stored at path. A miss is reported through
	// the boolean, never as an error.
	GetData(path []string) (*Entry, bool)

	// StoreData writes data at path. expiration is the absolute time the
	// caller wants the entry to live until; drivers may keep it shorter.
	StoreData(path []string, data []byte, expiration time.Time) bool

	// Clear removes the entry at path and all entries below it. An empty
	// path clears everything.
	Clear(path []string) bool

	// Purge performs whatever maintenance the backend needs to reclaim
	// expired entries.
	Purge() bool

	// IsPersistent reports whether entries outlive the writing process.
	IsPersistent() bool
}

// Entry is what a driver hands back on a hit: the opaque data together with
// the absolute expiration the writer requested.
type Entry struct {
	Data       []byte
	Expiration time.Time
}
