package mutate

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// SetField rebuilds doc with key set to val, preserving every other field's
// position and reporting whether anything changed. Exported for the root
// package's Replace/Upsert paths, which need to force a document's _id to
// match the record it is replacing without going through the $set operator
// grammar.
func SetField(doc bsoncore.Document, key string, val bsoncore.Value) (bsoncore.Document, bool) {
	out, changed, err := replaceOrAppendField(doc, key, val)
	if err != nil {
		return doc, false
	}
	return out, changed
}

func splitPath(field string) []string {
	return strings.Split(field, ".")
}

func getField(doc bsoncore.Document, key string) (bsoncore.Value, bool) {
	v, err := doc.LookupErr(key)
	if err != nil {
		return bsoncore.Value{}, false
	}
	return v, true
}

func lookupPath(doc bsoncore.Document, path []string) (bsoncore.Value, bool) {
	cur, ok := getField(doc, path[0])
	if !ok {
		return bsoncore.Value{}, false
	}
	for _, seg := range path[1:] {
		sub, ok := cur.DocumentOK()
		if !ok {
			return bsoncore.Value{}, false
		}
		cur, ok = getField(sub, seg)
		if !ok {
			return bsoncore.Value{}, false
		}
	}
	return cur, true
}

// replaceOrAppendField rebuilds doc with key set to val, preserving every
// other field's position. Reports whether anything actually changed.
func replaceOrAppendField(doc bsoncore.Document, key string, val bsoncore.Value) (bsoncore.Document, bool, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, false, slerrors.InvalidDocument("malformed document during mutation")
	}
	idx, buf := bsoncore.AppendDocumentStart(nil)
	found := false
	changed := false
	for _, e := range elems {
		if e.Key() == key {
			found = true
			old := e.Value()
			if old.Type == val.Type && bytesEqual(old.Data, val.Data) {
				buf = append(buf, e...)
			} else {
				buf = bsoncore.AppendValueElement(buf, key, val)
				changed = true
			}
			continue
		}
		buf = append(buf, e...)
	}
	if !found {
		buf = bsoncore.AppendValueElement(buf, key, val)
		changed = true
	}
	buf, err = bsoncore.AppendDocumentEnd(buf, idx)
	if err != nil {
		return nil, false, slerrors.Serialization("rebuild document after mutation", err)
	}
	return bsoncore.Document(buf), changed, nil
}

func removeField(doc bsoncore.Document, key string) (bsoncore.Document, bool, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, false, slerrors.InvalidDocument("malformed document during mutation")
	}
	idx, buf := bsoncore.AppendDocumentStart(nil)
	changed := false
	for _, e := range elems {
		if e.Key() == key {
			changed = true
			continue
		}
		buf = append(buf, e...)
	}
	if !changed {
		return doc, false, nil
	}
	buf, err = bsoncore.AppendDocumentEnd(buf, idx)
	if err != nil {
		return nil, false, slerrors.Serialization("rebuild document after mutation", err)
	}
	return bsoncore.Document(buf), true, nil
}

// withLeaf walks path into doc, invoking transform with the value found at
// the final segment (found=false if absent), and rebuilds every ancestor
// document on the way back out so interior length headers stay consistent —
// handled by bsoncore.AppendDocumentEnd at each level rather than by manual
// patching (see original_source's raw_mutation.rs comment on ancestor
// length headers, which the deserialize/reserialize path sidesteps).
func withLeaf(doc bsoncore.Document, path []string, transform func(v bsoncore.Value, found bool) (newVal bsoncore.Value, remove bool, changed bool, err error)) (bsoncore.Document, bool, error) {
	head := path[0]
	if len(path) == 1 {
		v, found := getField(doc, head)
		newVal, remove, changed, err := transform(v, found)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return doc, false, nil
		}
		if remove {
			return removeField(doc, head)
		}
		return replaceOrAppendField(doc, head, newVal)
	}

	var sub bsoncore.Document
	if v, ok := getField(doc, head); ok {
		d, ok2 := v.DocumentOK()
		if !ok2 {
			return nil, false, slerrors.InvalidQuery("cannot descend into non-document field " + head)
		}
		sub = d
	} else {
		sidx, sbuf := bsoncore.AppendDocumentStart(nil)
		sbuf, _ = bsoncore.AppendDocumentEnd(sbuf, sidx)
		sub = bsoncore.Document(sbuf)
	}

	newSub, changed, err := withLeaf(sub, path[1:], transform)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return doc, false, nil
	}
	return replaceOrAppendField(doc, head, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: newSub})
}

func setPath(doc bsoncore.Document, path []string, val bsoncore.Value) (bsoncore.Document, bool, error) {
	return withLeaf(doc, path, func(v bsoncore.Value, found bool) (bsoncore.Value, bool, bool, error) {
		if found && v.Type == val.Type && bytesEqual(v.Data, val.Data) {
			return bsoncore.Value{}, false, false, nil
		}
		return val, false, true, nil
	})
}

func unsetPath(doc bsoncore.Document, path []string) (bsoncore.Document, bool, error) {
	return withLeaf(doc, path, func(v bsoncore.Value, found bool) (bsoncore.Value, bool, bool, error) {
		if !found {
			return bsoncore.Value{}, false, false, nil
		}
		return bsoncore.Value{}, true, true, nil
	})
}

func incPath(doc bsoncore.Document, path []string, amount bsoncore.Value) (bsoncore.Document, bool, error) {
	return withLeaf(doc, path, func(v bsoncore.Value, found bool) (bsoncore.Value, bool, bool, error) {
		if !found {
			if !isNumeric(amount.Type) {
				return bsoncore.Value{}, false, false, slerrors.InvalidQuery("$inc: amount is not numeric")
			}
			return amount, false, true, nil
		}
		sum, err := incCombine(v, amount)
		if err != nil {
			return bsoncore.Value{}, false, false, err
		}
		return sum, false, true, nil
	})
}

// pushPath appends (or, if front, prepends) val to the array at path,
// renumbering every index key — required for $lpush and convenient to
// share with $push's fallback case.
func pushPath(doc bsoncore.Document, path []string, val bsoncore.Value, front bool) (bsoncore.Document, bool, error) {
	return withLeaf(doc, path, func(v bsoncore.Value, found bool) (bsoncore.Value, bool, bool, error) {
		var values []bsoncore.Value
		if found {
			arr, ok := v.ArrayOK()
			if !ok {
				return bsoncore.Value{}, false, false, slerrors.InvalidQuery("field is not an array")
			}
			vs, err := arr.Values()
			if err != nil {
				return bsoncore.Value{}, false, false, slerrors.InvalidQuery("malformed array")
			}
			values = vs
		}
		if front {
			values = append([]bsoncore.Value{val}, values...)
		} else {
			values = append(values, val)
		}
		return bsoncore.Value{Type: bsontype.Array, Data: encodeArray(values)}, false, true, nil
	})
}

func popPath(doc bsoncore.Document, path []string) (bsoncore.Document, bool, error) {
	return withLeaf(doc, path, func(v bsoncore.Value, found bool) (bsoncore.Value, bool, bool, error) {
		if !found {
			return bsoncore.Value{}, false, false, nil
		}
		arr, ok := v.ArrayOK()
		if !ok {
			return bsoncore.Value{}, false, false, slerrors.InvalidQuery("field is not an array")
		}
		values, err := arr.Values()
		if err != nil {
			return bsoncore.Value{}, false, false, slerrors.InvalidQuery("malformed array")
		}
		if len(values) == 0 {
			return bsoncore.Value{}, false, false, nil
		}
		values = values[:len(values)-1]
		return bsoncore.Value{Type: bsontype.Array, Data: encodeArray(values)}, false, true, nil
	})
}

func renamePath(doc bsoncore.Document, oldDotted, newDotted string) (bsoncore.Document, bool, error) {
	oldPath := splitPath(oldDotted)
	v, found := lookupPath(doc, oldPath)
	if !found {
		return doc, false, nil
	}
	doc2, _, err := unsetPath(doc, oldPath)
	if err != nil {
		return nil, false, err
	}
	doc3, _, err := setPath(doc2, splitPath(newDotted), v)
	if err != nil {
		return nil, false, err
	}
	return doc3, true, nil
}

func encodeArray(values []bsoncore.Value) []byte {
	idx, buf := bsoncore.AppendArrayStart(nil)
	for i, v := range values {
		buf = bsoncore.AppendValueElement(buf, strconv.Itoa(i), v)
	}
	buf, _ = bsoncore.AppendArrayEnd(buf, idx)
	return buf
}

func applyFallback(doc bsoncore.Document, m *Mutation) (bsoncore.Document, bool, error) {
	cur := doc
	changed := false
	for _, op := range m.Ops {
		path := splitPath(op.Field)
		var newDoc bsoncore.Document
		var c bool
		var err error
		switch op.Kind {
		case OpSet:
			newDoc, c, err = setPath(cur, path, op.Value)
		case OpUnset:
			newDoc, c, err = unsetPath(cur, path)
		case OpInc:
			newDoc, c, err = incPath(cur, path, op.Value)
		case OpPush:
			newDoc, c, err = pushPath(cur, path, op.Value, false)
		case OpLPush:
			newDoc, c, err = pushPath(cur, path, op.Value, true)
		case OpPop:
			newDoc, c, err = popPath(cur, path)
		case OpRename:
			newDoc, c, err = renamePath(cur, op.Field, op.NewName)
		}
		if err != nil {
			return nil, false, err
		}
		if c {
			changed = true
			cur = newDoc
		}
	}
	return cur, changed, nil
}
