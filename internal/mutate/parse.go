package mutate

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// Parse translates a mutation document into an ordered operator list per
// §4.8. A bare `field: value` pair is an implicit $set. Modifying _id,
// anywhere, under any operator, is rejected.
func Parse(doc bsoncore.Document) (*Mutation, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, slerrors.InvalidQuery("malformed mutation document")
	}

	var ops []FieldMutation
	for _, elem := range elems {
		key := elem.Key()
		val := elem.Value()

		switch key {
		case "$set":
			subOps, err := parseValueOps(val, OpSet)
			if err != nil {
				return nil, err
			}
			ops = append(ops, subOps...)
		case "$inc":
			subOps, err := parseValueOps(val, OpInc)
			if err != nil {
				return nil, err
			}
			ops = append(ops, subOps...)
		case "$push":
			subOps, err := parseValueOps(val, OpPush)
			if err != nil {
				return nil, err
			}
			ops = append(ops, subOps...)
		case "$lpush":
			subOps, err := parseValueOps(val, OpLPush)
			if err != nil {
				return nil, err
			}
			ops = append(ops, subOps...)
		case "$unset":
			subOps, err := parseFlagOps(val, OpUnset)
			if err != nil {
				return nil, err
			}
			ops = append(ops, subOps...)
		case "$pop":
			subOps, err := parseFlagOps(val, OpPop)
			if err != nil {
				return nil, err
			}
			ops = append(ops, subOps...)
		case "$rename":
			subOps, err := parseRenameOps(val)
			if err != nil {
				return nil, err
			}
			ops = append(ops, subOps...)
		default:
			if strings.HasPrefix(key, "$") {
				return nil, slerrors.InvalidQuery("unknown mutation operator " + key)
			}
			if key == "_id" {
				return nil, slerrors.InvalidQuery("_id is immutable")
			}
			ops = append(ops, FieldMutation{Field: key, Kind: OpSet, Value: copyValue(val)})
		}
	}
	return &Mutation{Ops: ops}, nil
}

func parseValueOps(val bsoncore.Value, kind OpKind) ([]FieldMutation, error) {
	sub, ok := val.DocumentOK()
	if !ok {
		return nil, slerrors.InvalidQuery("mutation operator requires a document of field:value pairs")
	}
	elems, err := sub.Elements()
	if err != nil {
		return nil, slerrors.InvalidQuery("malformed operator document")
	}
	var ops []FieldMutation
	for _, e := range elems {
		if e.Key() == "_id" {
			return nil, slerrors.InvalidQuery("_id is immutable")
		}
		ops = append(ops, FieldMutation{Field: e.Key(), Kind: kind, Value: copyValue(e.Value())})
	}
	return ops, nil
}

// parseFlagOps handles $unset/$pop, whose values are ignored (conventionally
// an empty string) — only the field names matter.
func parseFlagOps(val bsoncore.Value, kind OpKind) ([]FieldMutation, error) {
	sub, ok := val.DocumentOK()
	if !ok {
		return nil, slerrors.InvalidQuery("mutation operator requires a document of field names")
	}
	elems, err := sub.Elements()
	if err != nil {
		return nil, slerrors.InvalidQuery("malformed operator document")
	}
	var ops []FieldMutation
	for _, e := range elems {
		if e.Key() == "_id" {
			return nil, slerrors.InvalidQuery("_id is immutable")
		}
		ops = append(ops, FieldMutation{Field: e.Key(), Kind: kind})
	}
	return ops, nil
}

func parseRenameOps(val bsoncore.Value) ([]FieldMutation, error) {
	sub, ok := val.DocumentOK()
	if !ok {
		return nil, slerrors.InvalidQuery("$rename requires a document")
	}
	elems, err := sub.Elements()
	if err != nil {
		return nil, slerrors.InvalidQuery("malformed $rename document")
	}
	var ops []FieldMutation
	for _, e := range elems {
		if e.Key() == "_id" {
			return nil, slerrors.InvalidQuery("_id is immutable")
		}
		newName, ok := e.Value().StringValueOK()
		if !ok {
			return nil, slerrors.InvalidQuery("$rename target must be a string")
		}
		if newName == "_id" {
			return nil, slerrors.InvalidQuery("_id is immutable")
		}
		ops = append(ops, FieldMutation{Field: e.Key(), Kind: OpRename, NewName: newName})
	}
	return ops, nil
}

func copyValue(v bsoncore.Value) bsoncore.Value {
	return bsoncore.Value{Type: v.Type, Data: append([]byte(nil), v.Data...)}
}
