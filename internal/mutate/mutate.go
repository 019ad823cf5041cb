// Package mutate applies update operators ($set, $unset, $inc, $push,
// $lpush, $pop, $rename) to a document's raw BSON bytes (component C8).
//
// Two execution paths exist. The fast path splices the byte buffer directly
// — in-place overwrite, splice, or append before the trailing terminator —
// for flat fields and scalar values. The fallback path deserializes into a
// tree of sub-documents, applies the operator generically (supporting
// dotted paths, $rename, $lpush and document/array $set values), and
// re-serializes. Apply picks whichever path is eligible; both always agree
// on the resulting bytes (§8.1 property 7).
package mutate

import "go.mongodb.org/mongo-driver/bson/bsoncore"

// OpKind discriminates a mutation operator.
type OpKind int

const (
	OpSet OpKind = iota
	OpUnset
	OpInc
	OpPush
	OpLPush
	OpPop
	OpRename
)

// FieldMutation is one operator applied to one field path.
type FieldMutation struct {
	Field   string
	Kind    OpKind
	Value   bsoncore.Value // Set, Inc, Push, LPush
	NewName string         // Rename
}

// Mutation is a parsed update document: an ordered list of field operators,
// applied left to right.
type Mutation struct {
	Ops []FieldMutation
}
