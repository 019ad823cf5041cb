package keycodec

import (
	"bytes"
)

const (
	tagCollection  byte = 'c'
	tagIndexConfig byte = 'x'
	tagRecord      byte = 'r'
	tagIndex       byte = 'i'
	tagIndexMap    byte = 'j'
	sep            byte = 0x00
)

// KeyKind discriminates the five key families (§4.1).
type KeyKind int

const (
	KindCollection KeyKind = iota
	KindIndexConfig
	KindRecord
	KindIndex
	KindIndexMap
)

// EncodeCollectionKey builds `c\0{name}`.
func EncodeCollectionKey(name string) []byte {
	buf := make([]byte, 0, 2+len(name))
	buf = append(buf, tagCollection, sep)
	buf = append(buf, name...)
	return buf
}

// EncodeIndexConfigKey builds `x\0{collection}\0{field}`.
func EncodeIndexConfigKey(collection, field string) []byte {
	buf := make([]byte, 0, 2+len(collection)+1+len(field))
	buf = append(buf, tagIndexConfig, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	buf = append(buf, field...)
	return buf
}

// EncodeRecordKey builds `r\0{collection}\0{lp(doc_id)}`.
func EncodeRecordKey(collection string, docID Value) []byte {
	buf := make([]byte, 0, 2+len(collection)+1+lpHeader+len(docID.Bytes))
	buf = append(buf, tagRecord, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	buf = docID.WriteLengthPrefixed(buf)
	return buf
}

// EncodeIndexKey builds `i\0{collection}\0{field}\0{value_bytes}{lp(doc_id)}`.
func EncodeIndexKey(collection, field string, valueBytes []byte, docID Value) []byte {
	buf := make([]byte, 0, 2+len(collection)+1+len(field)+1+len(valueBytes)+lpHeader+len(docID.Bytes))
	buf = append(buf, tagIndex, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	buf = append(buf, field...)
	buf = append(buf, sep)
	buf = append(buf, valueBytes...)
	buf = docID.WriteLengthPrefixed(buf)
	return buf
}

// EncodeIndexMapKey builds `j\0{collection}\0{field}\0{lp(doc_id)}{value_bytes}`.
func EncodeIndexMapKey(collection, field string, docID Value, valueBytes []byte) []byte {
	buf := make([]byte, 0, 2+len(collection)+1+len(field)+1+lpHeader+len(docID.Bytes)+len(valueBytes))
	buf = append(buf, tagIndexMap, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	buf = append(buf, field...)
	buf = append(buf, sep)
	buf = docID.WriteLengthPrefixed(buf)
	buf = append(buf, valueBytes...)
	return buf
}

// PrefixCollection returns the scan prefix for all collection-meta keys.
func PrefixCollection() []byte { return []byte{tagCollection, sep} }

// PrefixIndexConfig returns the scan prefix for a collection's index configs.
func PrefixIndexConfig(collection string) []byte {
	buf := make([]byte, 0, 2+len(collection)+1)
	buf = append(buf, tagIndexConfig, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	return buf
}

// PrefixRecord returns the scan prefix for all records in a collection.
func PrefixRecord(collection string) []byte {
	buf := make([]byte, 0, 2+len(collection)+1)
	buf = append(buf, tagRecord, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	return buf
}

// PrefixIndexField returns the scan prefix for every entry of one index.
func PrefixIndexField(collection, field string) []byte {
	buf := make([]byte, 0, 2+len(collection)+1+len(field)+1)
	buf = append(buf, tagIndex, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	buf = append(buf, field...)
	buf = append(buf, sep)
	return buf
}

// PrefixIndexValue returns the scan prefix for entries matching one value.
func PrefixIndexValue(collection, field string, value []byte) []byte {
	buf := PrefixIndexField(collection, field)
	buf = append(buf, value...)
	return buf
}

// PrefixIndexMapField returns the scan prefix for every reverse-map entry of
// one index field, across all documents.
func PrefixIndexMapField(collection, field string) []byte {
	buf := make([]byte, 0, 2+len(collection)+1+len(field)+1)
	buf = append(buf, tagIndexMap, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	buf = append(buf, field...)
	buf = append(buf, sep)
	return buf
}

// PrefixIndexMapRecord returns the scan prefix for one document's reverse-map
// entries.
func PrefixIndexMapRecord(collection, field string, docID Value) []byte {
	buf := make([]byte, 0, 2+len(collection)+1+len(field)+1+lpHeader+len(docID.Bytes))
	buf = append(buf, tagIndexMap, sep)
	buf = append(buf, collection...)
	buf = append(buf, sep)
	buf = append(buf, field...)
	buf = append(buf, sep)
	buf = docID.WriteLengthPrefixed(buf)
	return buf
}

// DecodedKey is the parsed form of any of the five key families.
type DecodedKey struct {
	Kind       KeyKind
	Collection string
	Field      string
	DocID      Value
}

// splitTrailingDocID scans backwards for the last byte offset at which a
// valid length-prefixed doc id parses to the end of the slice. Used for
// Index keys, where a variable-length value_bytes segment precedes the
// fixed-format doc id with no delimiter.
func splitTrailingDocID(b []byte) ([]byte, Value, bool) {
	if len(b) < lpHeader {
		return nil, Value{}, false
	}
	for start := len(b) - lpHeader; start >= 0; start-- {
		candidate := b[start:]
		v, rest, ok := ParseLengthPrefixed(candidate)
		if ok && len(rest) == 0 {
			return b[:start], v, true
		}
	}
	return nil, Value{}, false
}

// DecodeKey parses any of the five key families from its byte encoding.
func DecodeKey(b []byte) (DecodedKey, bool) {
	if len(b) < 2 || b[1] != sep {
		return DecodedKey{}, false
	}
	tag := b[0]
	rest := b[2:]
	switch tag {
	case tagCollection:
		return DecodedKey{Kind: KindCollection, Collection: string(rest)}, true
	case tagRecord:
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			return DecodedKey{}, false
		}
		collection := string(rest[:i])
		v, _, ok := ParseLengthPrefixed(rest[i+1:])
		if !ok {
			return DecodedKey{}, false
		}
		return DecodedKey{Kind: KindRecord, Collection: collection, DocID: v}, true
	case tagIndexConfig:
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			return DecodedKey{}, false
		}
		return DecodedKey{
			Kind:       KindIndexConfig,
			Collection: string(rest[:i]),
			Field:      string(rest[i+1:]),
		}, true
	case tagIndex:
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			return DecodedKey{}, false
		}
		collection := string(rest[:i])
		afterCollection := rest[i+1:]
		j := bytes.IndexByte(afterCollection, sep)
		if j < 0 {
			return DecodedKey{}, false
		}
		field := string(afterCollection[:j])
		afterField := afterCollection[j+1:]
		_, docID, ok := splitTrailingDocID(afterField)
		if !ok {
			return DecodedKey{}, false
		}
		return DecodedKey{Kind: KindIndex, Collection: collection, Field: field, DocID: docID}, true
	case tagIndexMap:
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			return DecodedKey{}, false
		}
		collection := string(rest[:i])
		afterCollection := rest[i+1:]
		j := bytes.IndexByte(afterCollection, sep)
		if j < 0 {
			return DecodedKey{}, false
		}
		field := string(afterCollection[:j])
		afterField := afterCollection[j+1:]
		docID, _, ok := ParseLengthPrefixed(afterField)
		if !ok {
			return DecodedKey{}, false
		}
		return DecodedKey{Kind: KindIndexMap, Collection: collection, Field: field, DocID: docID}, true
	default:
		return DecodedKey{}, false
	}
}

// ParseIndexTail splits the value bytes and doc id out of an Index key's
// bytes, given the offset at which the field prefix ends.
func ParseIndexTail(keyBytes []byte, fieldSepOffset int) ([]byte, Value, bool) {
	if fieldSepOffset > len(keyBytes) {
		return nil, Value{}, false
	}
	return splitTrailingDocID(keyBytes[fieldSepOffset:])
}
