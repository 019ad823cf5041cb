package slate

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/filter"
	"github.com/kartikbazzad/slate/internal/keycodec"
	"github.com/kartikbazzad/slate/internal/mutate"
	"github.com/kartikbazzad/slate/internal/planner"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// Txn is a single Slate transaction. A read-write Txn must be committed or
// rolled back; letting it go out of scope without either leaves its writes
// invisible forever, exactly as if rolled back (§5).
type Txn struct {
	engineTxn *engine.Txn
}

// Now returns the timestamp (milliseconds since epoch) this transaction
// judges every document's ttl against.
func (t *Txn) Now() int64 { return t.engineTxn.Now() }

// Commit publishes every write made through this transaction.
func (t *Txn) Commit() error { return t.engineTxn.Commit() }

// Rollback discards every write made through this transaction.
func (t *Txn) Rollback() error { return t.engineTxn.Rollback() }

// CreateCollection registers name, idempotently.
func (t *Txn) CreateCollection(name string) error { return t.engineTxn.CreateCollection(name) }

// DropCollection removes name and everything in it. A no-op if absent.
func (t *Txn) DropCollection(name string) error { return t.engineTxn.DropCollection(name) }

// ListCollections returns every registered collection name.
func (t *Txn) ListCollections() ([]string, error) { return t.engineTxn.ListCollections() }

// CreateIndex declares field as indexed on collection, backfilling existing
// documents. Idempotent.
func (t *Txn) CreateIndex(collection, field string) error {
	return t.engineTxn.CreateIndex(collection, field)
}

// DropIndex removes field's index declaration and entries on collection. A
// no-op if field was never indexed.
func (t *Txn) DropIndex(collection, field string) error {
	return t.engineTxn.DropIndex(collection, field)
}

// ListIndexes returns collection's declared index fields (not including the
// implicit ttl field).
func (t *Txn) ListIndexes(collection string) ([]string, error) {
	return t.engineTxn.ListIndexes(collection)
}

// Execute plans and runs stmt, returning a Cursor. Find and Distinct
// statements produce a lazily-walked Cursor; every other kind runs to
// completion immediately (all of a mutation's work must land in this same
// transaction, so there is no benefit to deferring it) and returns a Cursor
// whose Result is already populated.
func (t *Txn) Execute(stmt Statement) (*Cursor, error) {
	h, err := t.engineTxn.Collection(stmt.Collection)
	if err != nil {
		return nil, err
	}

	switch stmt.Kind {
	case KindFind:
		return t.execFind(h, stmt)
	case KindDistinct:
		return t.execDistinct(h, stmt)
	case KindInsert:
		return t.execInsert(h, stmt)
	case KindUpdate:
		return t.execUpdate(h, stmt)
	case KindReplace:
		return t.execReplace(h, stmt)
	case KindDelete:
		return t.execDelete(h, stmt)
	case KindUpsert:
		return t.execUpsert(h, stmt)
	case KindMerge:
		return t.execMerge(h, stmt)
	default:
		return nil, slerrors.InvalidQuery("unrecognized statement kind")
	}
}

// parseFilter translates a statement's (possibly nil) filter document into
// an expression tree; a nil filter matches every live document.
func parseFilter(doc bsoncore.Document) (*filter.Expr, error) {
	if doc == nil {
		return nil, nil
	}
	return filter.Parse(doc)
}

// buildPlan runs the shared read-side planning logic: parse the filter and
// hand back the plan (§4.9). limitOverride, when positive, is used in place
// of stmt.Limit/Skip — the `_one` mutation variants pass 1 here.
//
// A single sort key and pagination are pushed into the plan as Sort and
// Limit nodes (§4.9.2). The planner drops the Sort node only when its source
// is already a full-range scan of that field's index, and it never selects
// such a source, so a sorted query always buffers and sorts its rows; an
// index never supplies the order. A multi-key sort cannot be pushed down at
// all (the planner only accepts one field), so when more than one sort
// key is requested neither sort nor pagination are pushed — execFind does
// both itself, after buffering every row, so ordering stays correct.
func buildPlan(h *engine.CollectionHandle, stmt Statement, limitOverride int64) (*planner.Plan, bool, error) {
	expr, err := parseFilter(stmt.Filter)
	if err != nil {
		return nil, false, err
	}
	multiSort := len(stmt.Sort) > 1
	opts := planner.Options{}
	switch {
	case limitOverride > 0:
		opts.Limit = limitOverride
	case !multiSort:
		opts.Skip = stmt.Skip
		opts.Limit = stmt.Limit
	}
	if len(stmt.Sort) == 1 {
		opts.SortField = stmt.Sort[0].Field
		opts.SortDesc = stmt.Sort[0].Desc
	}
	return planner.Build(h, expr, opts), multiSort, nil
}

// resolveID extracts the _id field from doc as a keycodec.Value, the common
// step Upsert and Merge both need.
func resolveID(doc bsoncore.Document) (keycodec.Value, error) {
	id, ok := keycodec.Extract(doc, "_id")
	if !ok {
		return keycodec.Value{}, slerrors.InvalidDocument("document has no supported _id field")
	}
	return id, nil
}

// withID returns a copy of doc with its _id field forced to id, used so a
// Replace/Upsert body's own _id (if any) never overrides the document it
// was matched against.
func withID(doc bsoncore.Document, id keycodec.Value) bsoncore.Document {
	raw, ok := id.ToRawValue()
	if !ok {
		return doc
	}
	out, _ := mutate.SetField(doc, "_id", raw)
	return out
}
