package cache

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"
)

// Recorder observes the outcome of every request the server handles.
type Recorder interface {
	Observe(op, result string, elapsed time.Duration)
}

type ServerOption func(*Server)

// WithRecorder attaches a Recorder, typically the daemon's metrics.
func WithRecorder(r Recorder) ServerOption {
	return func(s *Server) { s.rec = r }
}

// Server answers the JSON protocol on behalf of a KV.
type Server struct {
	kv  KV
	rec Recorder

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewServer(kv KV, opts ...ServerOption) *Server {
	s := &Server{kv: kv, conns: make(map[net.Conn]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections until Close is called. It returns nil after Close.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return l.Close()
	}
	s.ln = l
	s.mu.Unlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track registers a live connection; it refuses once the server is closed.
func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		start := time.Now()
		resp := s.dispatch(req)
		if s.rec != nil {
			s.rec.Observe(opLabel(req.Op), result(resp), time.Since(start))
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

// opUnknown labels requests whose op the server does not implement, keeping
// metric label values bounded whatever peers send.
const opUnknown = "unknown"

func opLabel(op string) string {
	switch op {
	case OpGet, OpPut, OpDelete, OpFlush, OpKeys, OpPing, OpStats:
		return op
	}
	return opUnknown
}

func (s *Server) dispatch(req Request) Response {
	switch req.Op {
	case OpGet:
		v, err := s.kv.Get(req.Key)
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, Value: v}
	case OpPut:
		ttl := DefaultTTL
		if req.TTL != nil {
			ttl = time.Duration(*req.TTL)
			if ttl < 0 {
				ttl = 0
			}
		}
		if err := s.kv.Put(req.Key, req.Value, ttl); err != nil {
			return failure(err)
		}
		return Response{OK: true}
	case OpDelete:
		if err := s.kv.Delete(req.Key); err != nil {
			return failure(err)
		}
		return Response{OK: true}
	case OpFlush:
		if err := s.kv.Flush(); err != nil {
			return failure(err)
		}
		return Response{OK: true}
	case OpKeys:
		keys, err := s.kv.Keys()
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, Keys: keys}
	case OpPing:
		return Response{OK: true}
	case OpStats:
		keys, err := s.kv.Keys()
		if err != nil {
			return failure(err)
		}
		st := &Stats{Records: len(keys), Live: len(keys)}
		if l, ok := s.kv.(interface{ Len() (int, error) }); ok {
			if n, err := l.Len(); err == nil {
				st.Records = n
			}
		}
		return Response{OK: true, Stats: st}
	default:
		return Response{OK: false, Error: "unknown op"}
	}
}

func failure(err error) Response { return Response{OK: false, Error: err.Error()} }

func result(resp Response) string {
	switch {
	case resp.OK:
		return "ok"
	case resp.Error == ErrNotFound.Error() || resp.Error == ErrExpired.Error():
		return "miss"
	default:
		return "error"
	}
}
