package driver

import (
	"encoding/binary"
	"errors"
	"time"
)

const envelopeHeader = 8

var errShortEnvelope = errors.New("driver: entry too short")

// encodeEntry lays out an entry as 8 bytes big endian expiration (unix nanos,
// 0 = none) followed by the raw data.
func encodeEntry(data []byte, expiration time.Time) []byte {
	var exp int64
	if !expiration.IsZero() {
		exp = expiration.UnixNano()
	}
	buf := make([]byte, envelopeHeader+len(data))
	binary.BigEndian.PutUint64(buf[:envelopeHeader], uint64(exp))
	copy(buf[envelopeHeader:], data)
	return buf
}

func decodeEntry(v []byte) (*Entry, error) {
	if len(v) < envelopeHeader {
		return nil, errShortEnvelope
	}
	e := &Entry{Data: append([]byte(nil), v[envelopeHeader:]...)}
	if exp := int64(binary.BigEndian.Uint64(v[:envelopeHeader])); exp != 0 {
		e.Expiration = time.Unix(0, exp)
	}
	return e, nil
}
