// Package storage binds the cache's key/value semantics to an embedded
// LSM engine: value encoding, TTL enforcement, and the store façade that
// the connection handler talks to.
package storage

import (
	"encoding/binary"
	"errors"
	"time"
)

// encodedHeaderSize is the fixed-width prefix of an encoded value: 8
// bytes expire_at + 4 bytes flags, both little-endian.
const encodedHeaderSize = 12

// ErrValueTooShort is returned by Decode when bytes can't hold a header.
var ErrValueTooShort = errors.New("storage: encoded value too short to decode")

// StoredValue is the in-memory representation of one cache entry: its
// absolute expiration instant, its opaque memcached flags, and its data.
type StoredValue struct {
	ExpireAt uint64
	Flags    uint32
	Data     []byte
}

// NewStoredValue builds a value from a client-supplied exptime, applying
// the TTL rules documented on CalculateExpireAt.
func NewStoredValue(flags uint32, exptime uint64, data []byte) StoredValue {
	return StoredValue{
		ExpireAt: CalculateExpireAt(exptime, nowUnix()),
		Flags:    flags,
		Data:     data,
	}
}

// Encode serializes v to its on-disk representation.
func (v StoredValue) Encode() []byte {
	buf := make([]byte, encodedHeaderSize+len(v.Data))
	binary.LittleEndian.PutUint64(buf[0:8], v.ExpireAt)
	binary.LittleEndian.PutUint32(buf[8:12], v.Flags)
	copy(buf[12:], v.Data)
	return buf
}

// Decode parses the on-disk representation produced by Encode. The
// returned Data aliases b; callers that retain it past the lifetime of
// the engine's read buffer must copy it first.
func Decode(b []byte) (StoredValue, error) {
	if len(b) < encodedHeaderSize {
		return StoredValue{}, ErrValueTooShort
	}
	return StoredValue{
		ExpireAt: binary.LittleEndian.Uint64(b[0:8]),
		Flags:    binary.LittleEndian.Uint32(b[8:12]),
		Data:     b[12:],
	}, nil
}

// IsExpired reports whether v's expire_at has passed, evaluated against
// now. A zero expire_at never expires.
func (v StoredValue) IsExpired(now uint64) bool {
	return v.ExpireAt != 0 && now >= v.ExpireAt
}

// maxRelativeExptime is the boundary (30 days, in seconds) below which
// an exptime is relative to now and above which it is an absolute Unix
// timestamp. Mirrors protocol.MaxKeyLength's sibling constant so storage
// has no import-time dependency on the protocol package.
const maxRelativeExptime = 2_592_000

// CalculateExpireAt converts a memcached exptime into an absolute
// expiration instant, per the same rules the wire protocol documents.
func CalculateExpireAt(exptime uint64, now uint64) uint64 {
	switch {
	case exptime == 0:
		return 0
	case exptime <= maxRelativeExptime:
		return now + exptime
	default:
		return exptime
	}
}

func nowUnix() uint64 {
	return uint64(time.Now().Unix())
}
