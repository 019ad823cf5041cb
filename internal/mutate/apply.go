package mutate

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
)

// Apply runs m against doc, returning the resulting document and whether
// anything changed. When every operator is fast-path eligible the result
// comes from direct byte splicing; otherwise the fallback path
// deserializes, mutates, and re-serializes. Both paths always produce the
// same bytes for a given (doc, mutation) pair (§8.1 property 7).
func Apply(doc bsoncore.Document, m *Mutation) (bsoncore.Document, bool, error) {
	if eligibleFastPath(m) {
		return applyFast(doc, m)
	}
	return applyFallback(doc, m)
}

// eligibleFastPath mirrors original_source's op_eligible: dotted paths,
// $rename, $lpush, and Document/Array $set or $push values all require the
// fallback path.
func eligibleFastPath(m *Mutation) bool {
	for _, op := range m.Ops {
		if strings.Contains(op.Field, ".") {
			return false
		}
		switch op.Kind {
		case OpRename, OpLPush:
			return false
		case OpSet, OpPush:
			if !scalarEligible(op.Value) {
				return false
			}
		}
	}
	return true
}

func applyFast(doc bsoncore.Document, m *Mutation) (bsoncore.Document, bool, error) {
	buf := append([]byte(nil), doc...)
	changed := false
	for _, op := range m.Ops {
		var c bool
		var err error
		switch op.Kind {
		case OpSet:
			buf, c = rawSet(buf, op.Field, op.Value)
		case OpUnset:
			buf, c = rawUnset(buf, op.Field)
		case OpInc:
			buf, c, err = rawInc(buf, op.Field, op.Value)
		case OpPush:
			buf, c, err = rawPush(buf, op.Field, op.Value)
		case OpPop:
			buf, c, err = rawPop(buf, op.Field)
		}
		if err != nil {
			return nil, false, err
		}
		changed = changed || c
	}
	if !changed {
		return doc, false, nil
	}
	return bsoncore.Document(buf), true, nil
}
