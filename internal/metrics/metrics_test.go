package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	m := New("hostcache")
	m.Observe("get", "ok", time.Millisecond)
	m.Observe("get", "miss", time.Millisecond)
	m.Observe("get", "miss", time.Millisecond)

	if got := testutil.ToFloat64(m.opsTotal.WithLabelValues("get", "miss")); got != 2 {
		t.Fatalf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.opsTotal.WithLabelValues("get", "ok")); got != 1 {
		t.Fatalf("expected 1 hit, got %v", got)
	}
}

func TestSwept(t *testing.T) {
	m := New("hostcache")
	m.Swept(3)
	m.Swept(0)
	if got := testutil.ToFloat64(m.swept); got != 3 {
		t.Fatalf("expected 3 swept, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New("hostcache")
	m.TrackRecords("hostcache", func() float64 { return 7 })
	m.Observe("put", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`hostcache_ops_total{op="put",result="ok"} 1`,
		"hostcache_records 7",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}
