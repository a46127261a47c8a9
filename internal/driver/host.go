package driver

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/leonardcser/hostcache/internal/cache"
	"github.com/leonardcser/hostcache/internal/keypath"
)

// HostName identifies the host driver in availability reports.
const HostName = "host"

// maxTTLSeconds is the longest lifetime a time.Duration can carry.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Host is a Driver over a flat cache.KV, normally the hostcached daemon.
// Every key it writes is namespaced and built with keypath.Encode. Store
// failures come back as false or as a miss; Host never logs or retries them.
type Host struct {
	kv  cache.KV
	now func() time.Time

	mu        sync.RWMutex
	maxTTL    int
	namespace string
}

var _ Driver = (*Host)(nil)

// OpenHost connects a Host to the daemon described by env. It fails with an
// error wrapping ErrUnavailable when ProbeHost rejects env.
func OpenHost(env Environment, opts Options) (*Host, error) {
	if info := ProbeHost(env); !info.Available {
		return nil, fmt.Errorf("%w: %s: %s", ErrUnavailable, info.Name, info.Reason)
	}
	return NewHost(cache.NewClient(env.Socket), opts), nil
}

// NewHost wraps a KV that is already known to be usable. Without a
// configured namespace the Host gets a random one.
func NewHost(kv cache.KV, opts Options) *Host {
	h := &Host{kv: kv, now: time.Now, maxTTL: DefaultMaxTTL}
	h.Configure(opts)
	if h.namespace == "" {
		h.namespace = NewNamespace()
	}
	return h
}

// Configure applies opts to later operations. It is safe to call at any time.
func (h *Host) Configure(opts Options) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if opts.TTL > 0 {
		h.maxTTL = opts.TTL
	}
	if opts.Namespace != "" {
		h.namespace = opts.Namespace
	}
}

// SetOptions configures the driver from a loosely typed option map; see
// OptionsFromMap.
func (h *Host) SetOptions(m map[string]any) error {
	opts, err := OptionsFromMap(m)
	if err != nil {
		return err
	}
	h.Configure(opts)
	return nil
}

// Namespace returns the namespace currently in effect.
func (h *Host) Namespace() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.namespace
}

// MaxTTL returns the configured lifetime ceiling in seconds.
func (h *Host) MaxTTL() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxTTL
}

func (h *Host) settings() (string, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.namespace, h.maxTTL
}

func (h *Host) GetData(path []string) (*Entry, bool) {
	ns, _ := h.settings()
	v, err := h.kv.Get(keypath.Encode(ns, path))
	if err != nil {
		return nil, false
	}
	e, err := decodeEntry(v)
	if err != nil {
		return nil, false
	}
	return e, true
}

func (h *Host) StoreData(path []string, data []byte, expiration time.Time) bool {
	ns, maxTTL := h.settings()
	ttl := EffectiveTTL(maxTTL, expiration, h.now())
	err := h.kv.Put(keypath.Encode(ns, path), encodeEntry(data, expiration), ttlDuration(ttl))
	return err == nil
}

// ttlDuration converts seconds to a Duration, saturating instead of wrapping
// to a negative value the store would read as its default.
func ttlDuration(seconds int) time.Duration {
	s := int64(seconds)
	if s > maxTTLSeconds {
		s = maxTTLSeconds
	}
	return time.Duration(s) * time.Second
}

// EffectiveTTL is the store lifetime, in whole seconds, for an entry that
// should expire at expiration: the time left, capped at maxTTL and floored at
// zero. An expiration already in the past still yields a write with
// lifetime zero.
func EffectiveTTL(maxTTL int, expiration, now time.Time) int {
	remaining := expiration.Unix() - now.Unix()
	ttl := int64(maxTTL)
	if remaining < ttl {
		ttl = remaining
	}
	if ttl < 0 {
		return 0
	}
	return int(ttl)
}

// Clear deletes path and its descendants by scanning every key in the store.
// The scan is not atomic: writes racing with it may survive. Once the key
// listing succeeds Clear reports true, even if individual deletes fail.
func (h *Host) Clear(path []string) bool {
	if len(path) == 0 {
		return h.kv.Flush() == nil
	}
	ns, _ := h.settings()
	keys, err := h.kv.Keys()
	if err != nil {
		return false
	}
	for _, k := range keys {
		if keypath.IsUnder(k.Key, ns, path) {
			_ = h.kv.Delete(k.Key)
		}
	}
	return true
}

// Purge is a no-op: the daemon reclaims expired entries on its own.
func (h *Host) Purge() bool { return true }

// IsPersistent is true: entries live in the host daemon, not the process.
func (h *Host) IsPersistent() bool { return true }
