// Package indexdiff maintains the bijection between forward index entries
// and reverse index map entries for a document's indexed fields (component
// C5): given old and new extracted values it computes the minimal set of
// index writes and deletes.
package indexdiff

import (
	"encoding/binary"

	"go.mongodb.org/mongo-driver/bson/bsontype"

	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// Meta is the small payload stored at an index entry's key: the value's BSON
// type tag plus an optional per-entry expiry, so scan_index can filter
// expired rows without a record fetch (§4.6).
type Meta struct {
	Tag     bsontype.Type
	HasTTL  bool
	TTLMs   int64
}

// Encode packs Meta into [tag:1][has_ttl:1][ttl_ms:8 if has_ttl].
func (m Meta) Encode() []byte {
	if !m.HasTTL {
		return []byte{byte(m.Tag), 0}
	}
	buf := make([]byte, 10)
	buf[0] = byte(m.Tag)
	buf[1] = 1
	binary.BigEndian.PutUint64(buf[2:], uint64(m.TTLMs))
	return buf
}

// DecodeMeta unpacks an encoded Meta payload.
func DecodeMeta(b []byte) (Meta, error) {
	if len(b) < 2 {
		return Meta{}, slerrors.InvalidKey("index metadata too short")
	}
	m := Meta{Tag: bsontype.Type(b[0]), HasTTL: b[1] != 0}
	if m.HasTTL {
		if len(b) < 10 {
			return Meta{}, slerrors.InvalidKey("index metadata missing ttl value")
		}
		m.TTLMs = int64(binary.BigEndian.Uint64(b[2:10]))
	}
	return m, nil
}

// IsExpired reports whether the metadata's TTL is in the past relative to now.
func (m Meta) IsExpired(now int64) bool {
	return m.HasTTL && m.TTLMs < now
}
