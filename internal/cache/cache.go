package cache

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store provides a host-resident KV with TTL semantics on top of a bbolt file.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	db         *bolt.DB
	bucket     []byte
	defaultTTL time.Duration
	mu         sync.RWMutex
	now        func() time.Time
}

type Options struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// DefaultTTL is used when Put is called with ttl < 0.
	// If DefaultTTL <= 0 such entries never expire.
	DefaultTTL time.Duration
}

var (
	ErrNotFound = errors.New("cache: not found")
	ErrExpired  = errors.New("cache: expired")
)

const headerLen = 8

// Open initializes or opens a Store at the given path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte("cache")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: bucket, defaultTTL: opts.DefaultTTL, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores value with an absolute expiry computed as now+ttl.
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = s.defaultTTL
		if ttl <= 0 {
			return s.put(key, value, 0)
		}
	}
	// A zero ttl still writes; the record is simply never served.
	return s.put(key, value, s.now().Add(ttl).UnixNano())
}

func (s *Store) put(key string, value []byte, expiresAt int64) error {
	// Layout: 8 bytes big endian expiresAt (unix nanos, 0 = never) || raw value
	buf := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(buf[:headerLen], uint64(expiresAt))
	copy(buf[headerLen:], value)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

// Get returns cached value if present and not expired.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now().UnixNano()
	var out []byte
	var expired bool
	var exists bool
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if len(v) < headerLen {
			return nil
		}
		exists = true
		if isExpired(v, now) {
			expired = true
			return nil
		}
		out = append([]byte(nil), v[headerLen:]...)
		return nil
	}); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	if expired {
		return nil, ErrExpired
	}
	return out, nil
}

// Delete removes a key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Flush drops every record by recreating the bucket.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

// Keys lists every live record.
func (s *Store) Keys() ([]EntryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now().UnixNano()
	var out []EntryInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			if len(v) < headerLen || isExpired(v, now) {
				return nil
			}
			info := EntryInfo{Key: string(k), Size: len(v) - headerLen}
			if exp := expiresAt(v); exp > 0 {
				info.ExpiresAt = time.Unix(0, exp)
			}
			out = append(out, info)
			return nil
		})
	})
	return out, err
}

// Sweep deletes expired or malformed records and reports how many it removed.
func (s *Store) Sweep() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UnixNano()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if len(v) < headerLen || isExpired(v, now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Len returns the number of records, expired or not.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func expiresAt(v []byte) int64 { return int64(binary.BigEndian.Uint64(v[:headerLen])) }

func isExpired(v []byte, now int64) bool {
	exp := expiresAt(v)
	return exp != 0 && now >= exp
}
