// Package keycodec implements the key families and sort-preserving value
// encoding that project Slate's document model onto an ordered byte-keyed
// store (component C1).
package keycodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// lpHeader is the length-prefixed header size: 1 type byte + 2 length bytes.
const lpHeader = 3

// Value is a type-tagged scalar: the shared representation for doc ids and
// index values. Bytes holds only the value payload (sort-encoded for
// numerics), never the type tag.
type Value struct {
	Tag   bsontype.Type
	Bytes []byte
}

// EncodeI32Sortable XORs the sign bit then emits big-endian bytes, so
// lexicographic byte order matches numeric order.
func EncodeI32Sortable(n int32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n)^0x8000_0000)
	return b
}

func DecodeI32Sortable(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b) ^ 0x8000_0000)
}

func EncodeI64Sortable(n int64) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n)^0x8000_0000_0000_0000)
	return b
}

func DecodeI64Sortable(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ 0x8000_0000_0000_0000)
}

// EncodeF64Sortable flips all bits for negatives, flips only the sign bit for
// non-negatives, then emits big-endian bytes.
func EncodeF64Sortable(f float64) [8]byte {
	bits := math.Float64bits(f)
	var encoded uint64
	if bits&0x8000_0000_0000_0000 != 0 {
		encoded = ^bits
	} else {
		encoded = bits ^ 0x8000_0000_0000_0000
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], encoded)
	return b
}

func DecodeF64Sortable(b []byte) float64 {
	encoded := binary.BigEndian.Uint64(b)
	var bits uint64
	if encoded&0x8000_0000_0000_0000 != 0 {
		bits = encoded ^ 0x8000_0000_0000_0000
	} else {
		bits = ^encoded
	}
	return math.Float64frombits(bits)
}

// FromRawValue builds a Value from a decoded BSON element. Returns false for
// types outside the indexable subset (Document, Array, Null, Binary, ...).
func FromRawValue(v bsoncore.Value) (Value, bool) {
	switch v.Type {
	case bsontype.ObjectID:
		oid, ok := v.ObjectIDOK()
		if !ok {
			return Value{}, false
		}
		return Value{Tag: bsontype.ObjectID, Bytes: append([]byte(nil), oid[:]...)}, true
	case bsontype.String:
		s, ok := v.StringValueOK()
		if !ok {
			return Value{}, false
		}
		return Value{Tag: bsontype.String, Bytes: []byte(s)}, true
	case bsontype.Int32:
		n, ok := v.Int32OK()
		if !ok {
			return Value{}, false
		}
		enc := EncodeI32Sortable(n)
		return Value{Tag: bsontype.Int32, Bytes: enc[:]}, true
	case bsontype.Int64:
		n, ok := v.Int64OK()
		if !ok {
			return Value{}, false
		}
		enc := EncodeI64Sortable(n)
		return Value{Tag: bsontype.Int64, Bytes: enc[:]}, true
	case bsontype.Double:
		f, ok := v.DoubleOK()
		if !ok {
			return Value{}, false
		}
		enc := EncodeF64Sortable(f)
		return Value{Tag: bsontype.Double, Bytes: enc[:]}, true
	case bsontype.DateTime:
		ms, ok := v.DateTimeOK()
		if !ok {
			return Value{}, false
		}
		enc := EncodeI64Sortable(ms)
		return Value{Tag: bsontype.DateTime, Bytes: enc[:]}, true
	case bsontype.Boolean:
		b, ok := v.BooleanOK()
		if !ok {
			return Value{}, false
		}
		if b {
			return Value{Tag: bsontype.Boolean, Bytes: []byte{1}}, true
		}
		return Value{Tag: bsontype.Boolean, Bytes: []byte{0}}, true
	default:
		return Value{}, false
	}
}

// WriteLengthPrefixed appends [tag:1][len:2 BE][bytes] to buf.
func (v Value) WriteLengthPrefixed(buf []byte) []byte {
	buf = append(buf, byte(v.Tag))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(v.Bytes)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, v.Bytes...)
	return buf
}

// ParseLengthPrefixed parses a Value from the start of b, returning the
// value and the remaining bytes.
func ParseLengthPrefixed(b []byte) (Value, []byte, bool) {
	if len(b) < lpHeader {
		return Value{}, nil, false
	}
	tag := bsontype.Type(b[0])
	l := int(binary.BigEndian.Uint16(b[1:3]))
	total := lpHeader + l
	if len(b) < total {
		return Value{}, nil, false
	}
	return Value{Tag: tag, Bytes: b[lpHeader:total]}, b[total:], true
}

// ToRawValue decodes a sort-encoded Value back to a plain BSON value,
// undoing the numeric sort transforms.
func (v Value) ToRawValue() (bsoncore.Value, bool) {
	switch v.Tag {
	case bsontype.String:
		return bsoncore.Value{Type: bsontype.String, Data: bsoncore.AppendString(nil, string(v.Bytes))}, true
	case bsontype.ObjectID:
		if len(v.Bytes) != 12 {
			return bsoncore.Value{}, false
		}
		var oid [12]byte
		copy(oid[:], v.Bytes)
		return bsoncore.Value{Type: bsontype.ObjectID, Data: oid[:]}, true
	case bsontype.Int32:
		if len(v.Bytes) != 4 {
			return bsoncore.Value{}, false
		}
		n := DecodeI32Sortable(v.Bytes)
		return bsoncore.Value{Type: bsontype.Int32, Data: bsoncore.AppendInt32(nil, n)}, true
	case bsontype.Int64:
		if len(v.Bytes) != 8 {
			return bsoncore.Value{}, false
		}
		n := DecodeI64Sortable(v.Bytes)
		return bsoncore.Value{Type: bsontype.Int64, Data: bsoncore.AppendInt64(nil, n)}, true
	case bsontype.Double:
		if len(v.Bytes) != 8 {
			return bsoncore.Value{}, false
		}
		f := DecodeF64Sortable(v.Bytes)
		return bsoncore.Value{Type: bsontype.Double, Data: bsoncore.AppendDouble(nil, f)}, true
	case bsontype.DateTime:
		if len(v.Bytes) != 8 {
			return bsoncore.Value{}, false
		}
		ms := DecodeI64Sortable(v.Bytes)
		return bsoncore.Value{Type: bsontype.DateTime, Data: bsoncore.AppendDateTime(nil, ms)}, true
	case bsontype.Boolean:
		if len(v.Bytes) == 0 {
			return bsoncore.Value{}, false
		}
		return bsoncore.Value{Type: bsontype.Boolean, Data: bsoncore.AppendBoolean(nil, v.Bytes[0] != 0)}, true
	default:
		return bsoncore.Value{}, false
	}
}

func (v Value) String() string {
	switch v.Tag {
	case bsontype.String:
		return string(v.Bytes)
	case bsontype.ObjectID:
		return fmt.Sprintf("%x", v.Bytes)
	case bsontype.Int32:
		if len(v.Bytes) == 4 {
			return fmt.Sprintf("%d", DecodeI32Sortable(v.Bytes))
		}
	case bsontype.Int64, bsontype.DateTime:
		if len(v.Bytes) == 8 {
			return fmt.Sprintf("%d", DecodeI64Sortable(v.Bytes))
		}
	case bsontype.Double:
		if len(v.Bytes) == 8 {
			return fmt.Sprintf("%v", DecodeF64Sortable(v.Bytes))
		}
	case bsontype.Boolean:
		if len(v.Bytes) != 0 {
			return fmt.Sprintf("%v", v.Bytes[0] != 0)
		}
	}
	return fmt.Sprintf("<bson 0x%02x>", byte(v.Tag))
}

// Equal reports whether two Values have the same tag and bytes.
func (v Value) Equal(other Value) bool {
	if v.Tag != other.Tag || len(v.Bytes) != len(other.Bytes) {
		return false
	}
	for i := range v.Bytes {
		if v.Bytes[i] != other.Bytes[i] {
			return false
		}
	}
	return true
}
