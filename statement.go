package slate

import "go.mongodb.org/mongo-driver/bson/bsoncore"

// Kind discriminates the statement shapes a Txn can execute (§4.9).
type Kind int

const (
	// KindFind reads documents matching a filter.
	KindFind Kind = iota
	// KindDistinct reads the unique values of one field among matching
	// documents.
	KindDistinct
	// KindInsert adds new documents, generating an _id for any that lack
	// one.
	KindInsert
	// KindUpdate applies a mutation document to every matching document.
	KindUpdate
	// KindReplace overwrites every matching document with a new body,
	// keeping its _id.
	KindReplace
	// KindDelete removes every matching document.
	KindDelete
	// KindUpsert replaces the document with the given _id, inserting it if
	// absent or expired.
	KindUpsert
	// KindMerge patches the document with the given _id as if by $set,
	// inserting it if absent or expired.
	KindMerge
)

// SortKey is one field of a (possibly multi-field) sort order.
type SortKey struct {
	Field string
	Desc  bool
}

// Statement is a single query or mutation request against one collection.
// Zero value fields mean "unset": a nil Filter matches every document, a
// zero Limit is unbounded, and so on.
type Statement struct {
	Kind       Kind
	Collection string

	// Find, Distinct, Update, Replace, Delete: which documents are in
	// scope. Nil matches every live document.
	Filter bsoncore.Document

	// Find, Distinct: result shaping.
	Sort       []SortKey
	Skip       int64
	Limit      int64
	Projection []string // dotted field paths; nil keeps every field

	// Distinct: which field's unique values to collect.
	DistinctField string

	// Update: the mutation document (§4.8) to apply to every matching
	// document.
	//
	// Merge: a flat patch document whose fields (besides _id, which
	// identifies the target) are applied as if each were wrapped in $set
	// (§4.10) — not a $set/$inc/... mutation document.
	Mutation bsoncore.Document

	// Replace, Upsert: the replacement body. Upsert requires an _id field.
	Replacement bsoncore.Document

	// Insert: the documents to add.
	Documents []bsoncore.Document

	// One restricts Update/Replace/Delete to at most the first matching
	// document (the "_one" variants of §4.9.4).
	One bool
}

// Find builds a read statement over collection.
func Find(collection string) Statement {
	return Statement{Kind: KindFind, Collection: collection}
}

// Distinct builds a statement collecting the unique values of field among
// documents in collection matching the statement's Filter.
func Distinct(collection, field string) Statement {
	return Statement{Kind: KindDistinct, Collection: collection, DistinctField: field}
}

// Insert builds a statement adding docs to collection.
func Insert(collection string, docs ...bsoncore.Document) Statement {
	return Statement{Kind: KindInsert, Collection: collection, Documents: docs}
}

// Update builds a statement applying mutation to every document in
// collection matching Filter.
func Update(collection string, mutation bsoncore.Document) Statement {
	return Statement{Kind: KindUpdate, Collection: collection, Mutation: mutation}
}

// Replace builds a statement overwriting every document in collection
// matching Filter with replacement.
func Replace(collection string, replacement bsoncore.Document) Statement {
	return Statement{Kind: KindReplace, Collection: collection, Replacement: replacement}
}

// Delete builds a statement removing every document in collection matching
// Filter.
func Delete(collection string) Statement {
	return Statement{Kind: KindDelete, Collection: collection}
}

// Upsert builds a statement that replaces the document identified by
// replacement's _id, inserting it if absent or expired.
func Upsert(collection string, replacement bsoncore.Document) Statement {
	return Statement{Kind: KindUpsert, Collection: collection, Replacement: replacement}
}

// Merge builds a statement that patches the document identified by patch's
// _id field with patch's other fields as if by $set, inserting it if absent
// or expired.
func Merge(collection string, patch bsoncore.Document) Statement {
	return Statement{Kind: KindMerge, Collection: collection, Mutation: patch}
}

// Where attaches a filter document to s.
func (s Statement) Where(filter bsoncore.Document) Statement {
	s.Filter = filter
	return s
}

// SortBy attaches a sort order to s.
func (s Statement) SortBy(keys ...SortKey) Statement {
	s.Sort = keys
	return s
}

// WithSkip sets how many matching rows to drop before the first one kept.
func (s Statement) WithSkip(n int64) Statement {
	s.Skip = n
	return s
}

// WithLimit bounds how many rows s yields or affects.
func (s Statement) WithLimit(n int64) Statement {
	s.Limit = n
	return s
}

// Select attaches a projection to a Find statement.
func (s Statement) Select(fields ...string) Statement {
	s.Projection = fields
	return s
}

// Only restricts an Update, Replace, or Delete statement to at most one
// document.
func (s Statement) Only() Statement {
	s.One = true
	return s
}

// Result reports what a mutation statement did.
type Result struct {
	InsertedIDs []bsoncore.Value
	Matched     int64
	Modified    int64
	Deleted     int64
	Upserted    int64
}
