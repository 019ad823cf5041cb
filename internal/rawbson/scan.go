// Package rawbson locates fields inside raw BSON document bytes and compares
// field values against filter literals, without fully deserializing the
// document (component C2).
package rawbson

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
)

// FindField looks up a top-level field by name. Returns false if absent or
// if the bytes are not a well-formed document.
func FindField(doc bsoncore.Document, name string) (bsoncore.Value, bool) {
	val, err := doc.LookupErr(name)
	if err != nil {
		return bsoncore.Value{}, false
	}
	return val, true
}

// FindFieldPath descends through sub-documents along a dotted path. Every
// non-final segment must resolve to an embedded document; array traversal
// (`[]` segments) is not handled here — that's ExtractAll's job
// (internal/keycodec) for index maintenance. For filter/projection purposes
// a dotted path simply does not match through an array.
func FindFieldPath(doc bsoncore.Document, dotted string) (bsoncore.Value, bool) {
	if !strings.Contains(dotted, ".") {
		return FindField(doc, dotted)
	}
	segments := strings.Split(dotted, ".")
	cur, err := doc.LookupErr(segments[0])
	if err != nil {
		return bsoncore.Value{}, false
	}
	for _, seg := range segments[1:] {
		sub, ok := cur.DocumentOK()
		if !ok {
			return bsoncore.Value{}, false
		}
		cur, err = sub.LookupErr(seg)
		if err != nil {
			return bsoncore.Value{}, false
		}
	}
	return cur, true
}
