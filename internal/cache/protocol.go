package cache

// Simple JSON protocol for the cache daemon over a Unix domain socket.
// Each request gets exactly one response; a connection may carry many.

const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpFlush  = "flush"
	OpKeys   = "keys"
	OpPing   = "ping"
	OpStats  = "stats"
)

type Request struct {
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Value []byte `json:"value,omitempty"`
	// TTL is in nanoseconds. Absent means the store default, 0 means already expired.
	TTL *int64 `json:"ttl_ns,omitempty"`
}

type Response struct {
	OK    bool        `json:"ok"`
	Value []byte      `json:"value,omitempty"`
	Keys  []EntryInfo `json:"keys,omitempty"`
	Stats *Stats      `json:"stats,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Stats summarizes what the daemon currently holds.
type Stats struct {
	Records int `json:"records"`
	Live    int `json:"live"`
}
