package mutate

import "go.mongodb.org/mongo-driver/bson/bsoncore"

// Merge applies every top-level field of patch to doc as if by a byte-level
// $set, skipping _id, grounded directly on original_source's raw_merge:
// unlike Apply's operator-keyed Mutation, a merge patch is a plain document
// of field values (no $set/$inc wrapper) — the root package's Merge
// statement kind uses this for its "patch fields rather than replacing"
// semantics (§4.10).
func Merge(doc bsoncore.Document, patch bsoncore.Document) (bsoncore.Document, bool, error) {
	elems, err := patch.Elements()
	if err != nil {
		return nil, false, err
	}
	buf := append([]byte(nil), doc...)
	changed := false
	for _, e := range elems {
		if e.Key() == "_id" {
			continue
		}
		var c bool
		buf, c = rawSet(buf, e.Key(), e.Value())
		changed = changed || c
	}
	if !changed {
		return doc, false, nil
	}
	return bsoncore.Document(buf), true, nil
}
