package driver

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/leonardcser/hostcache/internal/cache"
	"github.com/leonardcser/hostcache/internal/keypath"
)

// memKV is an in-memory cache.KV that remembers the TTL of every write.
type memKV struct {
	mu       sync.Mutex
	values   map[string][]byte
	ttls     map[string]time.Duration
	failPut  bool
	failKeys bool
	deletes  int
}

func newMemKV() *memKV {
	return &memKV{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Put(key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("store full")
	}
	m.values[key] = append([]byte(nil), value...)
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.values, key)
	delete(m.ttls, key)
	return nil
}

func (m *memKV) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string][]byte{}
	m.ttls = map[string]time.Duration{}
	return nil
}

func (m *memKV) Keys() ([]cache.EntryInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failKeys {
		return nil, errors.New("listing failed")
	}
	out := make([]cache.EntryInfo, 0, len(m.values))
	for k, v := range m.values {
		out = append(out, cache.EntryInfo{Key: k, Size: len(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memKV) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

var testNow = time.Unix(1_700_000_000, 0)

func newTestHost(kv cache.KV, opts Options) *Host {
	h := NewHost(kv, opts)
	h.now = func() time.Time { return testNow }
	return h
}

func TestEffectiveTTL(t *testing.T) {
	cases := []struct {
		name   string
		maxTTL int
		exp    time.Time
		want   int
	}{
		{"capped by max", 300, testNow.Add(600 * time.Second), 300},
		{"remaining below max", 300, testNow.Add(60 * time.Second), 60},
		{"exactly max", 300, testNow.Add(300 * time.Second), 300},
		{"expires now", 300, testNow, 0},
		{"already past", 300, testNow.Add(-time.Hour), 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := EffectiveTTL(c.maxTTL, c.exp, testNow); got != c.want {
				t.Fatalf("expected %d, got %d", c.want, got)
			}
		})
	}
}

func TestHost_RoundTrip(t *testing.T) {
	h := newTestHost(newMemKV(), Options{Namespace: "app1"})

	exp := testNow.Add(time.Minute)
	if !h.StoreData([]string{"users", "42"}, []byte("profile"), exp) {
		t.Fatal("StoreData failed")
	}
	e, ok := h.GetData([]string{"users", "42"})
	if !ok {
		t.Fatal("expected a hit")
	}
	if string(e.Data) != "profile" {
		t.Fatalf("expected 'profile', got '%s'", string(e.Data))
	}
	if !e.Expiration.Equal(exp) {
		t.Fatalf("expected expiration %v, got %v", exp, e.Expiration)
	}
}

func TestHost_MissIsNotAnError(t *testing.T) {
	h := newTestHost(newMemKV(), Options{Namespace: "app1"})
	if e, ok := h.GetData([]string{"never", "written"}); ok || e != nil {
		t.Fatalf("expected a miss, got %+v", e)
	}
}

func TestHost_CorruptValueIsAMiss(t *testing.T) {
	kv := newMemKV()
	h := newTestHost(kv, Options{Namespace: "app1"})
	kv.Put(keypath.Encode("app1", []string{"bad"}), []byte("x"), time.Minute)

	if _, ok := h.GetData([]string{"bad"}); ok {
		t.Fatal("a value without an envelope must read as a miss")
	}
}

func TestHost_PastExpirationStillWrites(t *testing.T) {
	kv := newMemKV()
	h := newTestHost(kv, Options{Namespace: "app1"})

	if !h.StoreData([]string{"old"}, []byte("v"), testNow.Add(-time.Minute)) {
		t.Fatal("StoreData with a past expiration should still succeed")
	}
	key := keypath.Encode("app1", []string{"old"})
	if _, err := kv.Get(key); err != nil {
		t.Fatalf("expected the entry to be written: %v", err)
	}
	if ttl := kv.ttl(key); ttl != 0 {
		t.Fatalf("expected zero lifetime, got %v", ttl)
	}
}

func TestHost_HugeTTLSaturates(t *testing.T) {
	kv := newMemKV()
	h := newTestHost(kv, Options{Namespace: "app1", TTL: 1 << 40})

	if !h.StoreData([]string{"far"}, []byte("v"), testNow.AddDate(400, 0, 0)) {
		t.Fatal("StoreData failed")
	}
	ttl := kv.ttl(keypath.Encode("app1", []string{"far"}))
	if ttl <= 0 {
		t.Fatalf("expected a positive lifetime, got %v", ttl)
	}
	if want := time.Duration(maxTTLSeconds) * time.Second; ttl != want {
		t.Fatalf("expected lifetime %v, got %v", want, ttl)
	}
}

func TestHost_StoreFailureReturnsFalse(t *testing.T) {
	kv := newMemKV()
	kv.failPut = true
	h := newTestHost(kv, Options{Namespace: "app1"})

	if h.StoreData([]string{"a"}, []byte("v"), testNow.Add(time.Minute)) {
		t.Fatal("expected StoreData to report the store failure")
	}
}

func TestHost_EndToEndScenario(t *testing.T) {
	kv := newMemKV()
	h := newTestHost(kv, Options{Namespace: "app1", TTL: 300})

	h.StoreData([]string{"a", "b"}, []byte("v1"), testNow.Add(600*time.Second))
	h.StoreData([]string{"a", "c"}, []byte("v2"), testNow.Add(60*time.Second))
	h.StoreData([]string{"ab"}, []byte("keep"), testNow.Add(60*time.Second))

	if ttl := kv.ttl("app1::a::b::"); ttl != 300*time.Second {
		t.Fatalf("expected 300s lifetime for [a b], got %v", ttl)
	}
	if ttl := kv.ttl("app1::a::c::"); ttl != 60*time.Second {
		t.Fatalf("expected 60s lifetime for [a c], got %v", ttl)
	}

	if !h.Clear([]string{"a"}) {
		t.Fatal("Clear failed")
	}
	for _, p := range [][]string{{"a", "b"}, {"a", "c"}, {"z"}} {
		if _, ok := h.GetData(p); ok {
			t.Fatalf("expected %q to miss", p)
		}
	}
	if _, ok := h.GetData([]string{"ab"}); !ok {
		t.Fatal("sibling [ab] must survive clearing [a]")
	}
}

func TestHost_ClearIsIdempotent(t *testing.T) {
	kv := newMemKV()
	h := newTestHost(kv, Options{Namespace: "app1"})
	h.StoreData([]string{"a", "b"}, []byte("v"), testNow.Add(time.Minute))

	if !h.Clear([]string{"a"}) {
		t.Fatal("first Clear failed")
	}
	deletes := kv.deletes
	if !h.Clear([]string{"a"}) {
		t.Fatal("second Clear should still report success")
	}
	if kv.deletes != deletes {
		t.Fatalf("second Clear should find nothing to delete, deleted %d", kv.deletes-deletes)
	}
}

func TestHost_ClearLeavesOtherNamespaces(t *testing.T) {
	kv := newMemKV()
	h1 := newTestHost(kv, Options{Namespace: "app1"})
	h2 := newTestHost(kv, Options{Namespace: "app2"})
	h1.StoreData([]string{"a"}, []byte("1"), testNow.Add(time.Minute))
	h2.StoreData([]string{"a"}, []byte("2"), testNow.Add(time.Minute))

	h1.Clear([]string{"a"})
	if _, ok := h2.GetData([]string{"a"}); !ok {
		t.Fatal("clearing app1 must not touch app2")
	}
}

func TestHost_ClearAll(t *testing.T) {
	kv := newMemKV()
	h := newTestHost(kv, Options{Namespace: "app1"})
	h.StoreData([]string{"a"}, []byte("1"), testNow.Add(time.Minute))
	h.StoreData([]string{"b"}, []byte("2"), testNow.Add(time.Minute))

	if !h.Clear(nil) {
		t.Fatal("Clear(nil) failed")
	}
	keys, _ := kv.Keys()
	if len(keys) != 0 {
		t.Fatalf("expected an empty store, got %d keys", len(keys))
	}
}

func TestHost_ClearListingFailure(t *testing.T) {
	kv := newMemKV()
	kv.failKeys = true
	h := newTestHost(kv, Options{Namespace: "app1"})

	if h.Clear([]string{"a"}) {
		t.Fatal("expected Clear to fail when the store cannot list keys")
	}
}

func TestHost_Capabilities(t *testing.T) {
	h := newTestHost(newMemKV(), Options{})
	if !h.Purge() {
		t.Fatal("Purge should be a successful no-op")
	}
	if !h.IsPersistent() {
		t.Fatal("host driver is persistent")
	}
	if h.Namespace() == "" {
		t.Fatal("expected a generated namespace")
	}
	if h.MaxTTL() != DefaultMaxTTL {
		t.Fatalf("expected default max TTL %d, got %d", DefaultMaxTTL, h.MaxTTL())
	}
}

func TestHost_Reconfigure(t *testing.T) {
	kv := newMemKV()
	h := newTestHost(kv, Options{Namespace: "app1"})

	if err := h.SetOptions(map[string]any{"ttl": "30", "namespace": "app2", "unknown": true}); err != nil {
		t.Fatalf("SetOptions failed: %v", err)
	}
	if h.Namespace() != "app2" || h.MaxTTL() != 30 {
		t.Fatalf("unexpected settings: ns=%q ttl=%d", h.Namespace(), h.MaxTTL())
	}
	h.StoreData([]string{"a"}, []byte("v"), testNow.Add(time.Hour))
	if ttl := kv.ttl("app2::a::"); ttl != 30*time.Second {
		t.Fatalf("expected 30s lifetime under new settings, got %v", ttl)
	}

	// Applying the same options again changes nothing.
	if err := h.SetOptions(map[string]any{"ttl": 30, "namespace": "app2"}); err != nil {
		t.Fatalf("SetOptions failed: %v", err)
	}
	if h.Namespace() != "app2" || h.MaxTTL() != 30 {
		t.Fatal("SetOptions should be idempotent")
	}
}

func TestOptionsFromMap_Invalid(t *testing.T) {
	for _, m := range []map[string]any{
		{"ttl": "soon"},
		{"ttl": 0},
		{"ttl": -5},
	} {
		if _, err := OptionsFromMap(m); !errors.Is(err, ErrInvalidOption) {
			t.Fatalf("expected ErrInvalidOption for %v, got %v", m, err)
		}
	}
	opts, err := OptionsFromMap(map[string]any{"ttl": 12.0})
	if err != nil || opts.TTL != 12 {
		t.Fatalf("expected ttl 12 from a float, got %+v, %v", opts, err)
	}
}

func TestHost_WithBoltStore(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.bbolt"), cache.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	h := NewHost(store, Options{Namespace: "app1"})
	if !h.StoreData([]string{"a", "b"}, []byte("v1"), time.Now().Add(time.Minute)) {
		t.Fatal("StoreData failed")
	}
	if !h.StoreData([]string{"stale"}, []byte("v"), time.Now().Add(-time.Minute)) {
		t.Fatal("StoreData with past expiration failed")
	}
	if e, ok := h.GetData([]string{"a", "b"}); !ok || string(e.Data) != "v1" {
		t.Fatalf("expected hit on [a b], got %+v %v", e, ok)
	}
	if _, ok := h.GetData([]string{"stale"}); ok {
		t.Fatal("an entry stored with zero lifetime must not be served")
	}
	h.Clear([]string{"a"})
	if _, ok := h.GetData([]string{"a", "b"}); ok {
		t.Fatal("expected [a b] to be cleared")
	}
}

func startDaemon(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hcd")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := cache.Open(filepath.Join(dir, "cache.bbolt"), cache.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sock := filepath.Join(dir, "cache.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	srv := cache.NewServer(store)
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })
	return sock
}

func TestOpenHost_ThroughDaemon(t *testing.T) {
	sock := startDaemon(t)

	h, err := OpenHost(Environment{Socket: sock}, Options{Namespace: "app1"})
	if err != nil {
		t.Fatalf("OpenHost failed: %v", err)
	}
	if !h.StoreData([]string{"a"}, []byte("v"), time.Now().Add(time.Minute)) {
		t.Fatal("StoreData failed")
	}
	if e, ok := h.GetData([]string{"a"}); !ok || string(e.Data) != "v" {
		t.Fatalf("expected hit, got %+v %v", e, ok)
	}
}

func TestOpenHost_Unavailable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.sock")
	h, err := OpenHost(Environment{Socket: missing}, Options{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if h != nil {
		t.Fatal("no driver should be returned")
	}
}

func TestProbeHost_CLIDisabled(t *testing.T) {
	sock := startDaemon(t)

	info := ProbeHost(Environment{Socket: sock, CLI: true})
	if info.Available {
		t.Fatal("command-line use should be refused without EnableCLI")
	}
	if info.Reason == "" {
		t.Fatal("expected a reason")
	}
	if !HostAvailable(Environment{Socket: sock, CLI: true, EnableCLI: true}) {
		t.Fatal("expected availability with EnableCLI")
	}
	if !HostAvailable(Environment{Socket: sock}) {
		t.Fatal("expected availability outside the CLI")
	}
	if _, err := OpenHost(Environment{Socket: sock, CLI: true}, Options{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
