package keycodec

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
)

// Extract reads a single field path (dotted, no `[]` segments) from doc and
// converts it to an indexable Value. Returns false if the field is absent or
// its BSON type isn't in the indexable subset.
func Extract(doc bsoncore.Document, field string) (Value, bool) {
	if !strings.Contains(field, ".") {
		val, err := doc.LookupErr(field)
		if err != nil {
			return Value{}, false
		}
		return FromRawValue(val)
	}

	segments := strings.Split(field, ".")
	val, err := doc.LookupErr(segments[0])
	if err != nil {
		return Value{}, false
	}
	for _, seg := range segments[1:] {
		sub, ok := val.DocumentOK()
		if !ok {
			return Value{}, false
		}
		val, err = sub.LookupErr(seg)
		if err != nil {
			return Value{}, false
		}
	}
	return FromRawValue(val)
}

// ExtractAll extracts every scalar reachable under field, where `[]`
// segments traverse every element of an array (multi-key indexing).
func ExtractAll(doc bsoncore.Document, field string) []Value {
	if !strings.Contains(field, "[]") {
		v, ok := Extract(doc, field)
		if !ok {
			return nil
		}
		return []Value{v}
	}

	segments := strings.Split(field, ".")
	var out []Value
	collectFromDoc(doc, segments, 0, &out)
	return out
}

func collectFromDoc(doc bsoncore.Document, segments []string, idx int, out *[]Value) {
	if idx >= len(segments) {
		return
	}
	seg := segments[idx]
	if seg == "[]" {
		return
	}
	val, err := doc.LookupErr(seg)
	if err != nil {
		return
	}
	collectFromValue(val, segments, idx+1, out)
}

func collectFromValue(val bsoncore.Value, segments []string, idx int, out *[]Value) {
	if idx >= len(segments) {
		if arr, ok := val.ArrayOK(); ok {
			elems, err := arr.Values()
			if err != nil {
				return
			}
			for _, e := range elems {
				if bv, ok := FromRawValue(e); ok {
					*out = append(*out, bv)
				}
			}
			return
		}
		if bv, ok := FromRawValue(val); ok {
			*out = append(*out, bv)
		}
		return
	}

	seg := segments[idx]
	if seg == "[]" {
		arr, ok := val.ArrayOK()
		if !ok {
			return
		}
		elems, err := arr.Values()
		if err != nil {
			return
		}
		for _, e := range elems {
			collectFromValue(e, segments, idx+1, out)
		}
		return
	}
	sub, ok := val.DocumentOK()
	if !ok {
		return
	}
	collectFromDoc(sub, segments, idx, out)
}
