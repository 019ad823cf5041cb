// Package record implements the TTL-prefixed on-disk record format
// (component C3): a 9-byte header carrying an optional expiry, followed by
// the raw BSON document bytes.
package record

import (
	"encoding/binary"

	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// HeaderSize is the fixed TTL header width: 1 flag byte + 8 signed millis.
const HeaderSize = 9

// Wrap prepends a TTL header to doc. ttl is the millisecond epoch value; hasTTL
// indicates whether the document carries a ttl field at all.
func Wrap(doc []byte, hasTTL bool, ttlMillis int64) []byte {
	buf := make([]byte, HeaderSize+len(doc))
	if hasTTL {
		buf[0] = 1
		binary.BigEndian.PutUint64(buf[1:9], uint64(ttlMillis))
	}
	copy(buf[HeaderSize:], doc)
	return buf
}

// Unwrap splits a stored record into (hasTTL, ttlMillis, bsonBytes).
func Unwrap(raw []byte) (hasTTL bool, ttlMillis int64, doc []byte, err error) {
	if len(raw) < HeaderSize {
		return false, 0, nil, slerrors.InvalidKey("record shorter than TTL header")
	}
	hasTTL = raw[0] != 0
	ttlMillis = int64(binary.BigEndian.Uint64(raw[1:9]))
	return hasTTL, ttlMillis, raw[HeaderSize:], nil
}

// IsExpired reports whether the header carries a TTL that is strictly less
// than now (milliseconds since epoch).
func IsExpired(raw []byte, now int64) bool {
	if len(raw) < HeaderSize {
		return false
	}
	if raw[0] == 0 {
		return false
	}
	ttl := int64(binary.BigEndian.Uint64(raw[1:9]))
	return ttl < now
}

// Document returns the BSON payload, stripping the TTL header.
func Document(raw []byte) []byte {
	if len(raw) < HeaderSize {
		return nil
	}
	return raw[HeaderSize:]
}
