package cache

import (
	"encoding/json"
	"errors"
	"net"
	"time"
)

const dialTimeout = 500 * time.Millisecond

// Client implements KV over a Unix socket.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// SocketPath returns the daemon socket this client dials.
func (c *Client) SocketPath() string { return c.socketPath }

func (c *Client) withConn(fn func(conn net.Conn) error) error {
	conn, err := net.DialTimeout("unix", c.socketPath, dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

func (c *Client) roundTrip(req Request) (Response, error) {
	var resp Response
	err := c.withConn(func(conn net.Conn) error {
		if err := json.NewEncoder(conn).Encode(&req); err != nil {
			return err
		}
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			return err
		}
		if !resp.OK {
			return remoteError(resp.Error)
		}
		return nil
	})
	return resp, err
}

func (c *Client) Get(key string) ([]byte, error) {
	resp, err := c.roundTrip(Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), resp.Value...), nil
}

func (c *Client) Put(key string, value []byte, ttl time.Duration) error {
	req := Request{Op: OpPut, Key: key, Value: value}
	if ttl >= 0 {
		ns := int64(ttl)
		req.TTL = &ns
	}
	_, err := c.roundTrip(req)
	return err
}

func (c *Client) Delete(key string) error {
	_, err := c.roundTrip(Request{Op: OpDelete, Key: key})
	return err
}

func (c *Client) Flush() error {
	_, err := c.roundTrip(Request{Op: OpFlush})
	return err
}

func (c *Client) Keys() ([]EntryInfo, error) {
	resp, err := c.roundTrip(Request{Op: OpKeys})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// Ping checks that the daemon answers on the socket.
func (c *Client) Ping() error {
	_, err := c.roundTrip(Request{Op: OpPing})
	return err
}

func (c *Client) Stats() (Stats, error) {
	resp, err := c.roundTrip(Request{Op: OpStats})
	if err != nil {
		return Stats{}, err
	}
	if resp.Stats == nil {
		return Stats{}, nil
	}
	return *resp.Stats, nil
}

// remoteError maps daemon error strings back onto the package sentinels.
func remoteError(msg string) error {
	switch msg {
	case ErrNotFound.Error():
		return ErrNotFound
	case ErrExpired.Error():
		return ErrExpired
	}
	return errors.New(msg)
}
