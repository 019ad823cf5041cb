package slate

import (
	"bytes"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/executor"
	"github.com/kartikbazzad/slate/internal/mutate"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// execInsert runs an Insert statement: PutNX every document, collecting the
// resolved _id of each (generating one for any document that lacks it).
// Errors bubble up and abort the rest of the batch (§4.10 — stream errors
// terminate the consumer), leaving whatever was already inserted committed
// along with everything else once the caller commits the transaction.
func (t *Txn) execInsert(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	var result Result
	for _, doc := range stmt.Documents {
		id, err := t.engineTxn.PutNX(h, doc)
		if err != nil {
			return nil, err
		}
		raw, ok := id.ToRawValue()
		if !ok {
			return nil, slerrors.Serialization("decode generated _id", nil)
		}
		result.InsertedIDs = append(result.InsertedIDs, raw)
	}
	result.Matched = int64(len(stmt.Documents))
	result.Modified = int64(len(stmt.Documents))
	return &Cursor{result: result}, nil
}

func (t *Txn) execUpdate(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	m, err := mutate.Parse(stmt.Mutation)
	if err != nil {
		return nil, err
	}
	return t.runMutationLoop(h, stmt, func(row executor.Row) (bsoncore.Document, bool, error) {
		return mutate.Apply(row.Doc, m)
	})
}

func (t *Txn) execReplace(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	return t.runMutationLoop(h, stmt, func(row executor.Row) (bsoncore.Document, bool, error) {
		newDoc := withID(stmt.Replacement, row.ID)
		return newDoc, !bytes.Equal(newDoc, row.Doc), nil
	})
}

// runMutationLoop drives the shared Update/Replace shape: plan the source
// (with Limit(1) when stmt.One, per §4.9.4), pull each row, apply, and write
// back through the engine (which maintains indexes) only when something
// changed.
func (t *Txn) runMutationLoop(h *engine.CollectionHandle, stmt Statement, apply func(executor.Row) (bsoncore.Document, bool, error)) (*Cursor, error) {
	limit := int64(0)
	if stmt.One {
		limit = 1
	}
	plan, _, err := buildPlan(h, stmt, limit)
	if err != nil {
		return nil, err
	}
	it, err := executor.Open(t.engineTxn, h, plan)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var result Result
	for it.Next() {
		row := it.Row()
		result.Matched++
		newDoc, changed, err := apply(row)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		if err := t.engineTxn.Put(h, newDoc); err != nil {
			return nil, err
		}
		result.Modified++
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return &Cursor{result: result}, nil
}

func (t *Txn) execDelete(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	limit := int64(0)
	if stmt.One {
		limit = 1
	}
	plan, _, err := buildPlan(h, stmt, limit)
	if err != nil {
		return nil, err
	}
	it, err := executor.Open(t.engineTxn, h, plan)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var result Result
	for it.Next() {
		row := it.Row()
		if err := t.engineTxn.Delete(h, row.ID); err != nil {
			return nil, err
		}
		result.Deleted++
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return &Cursor{result: result}, nil
}

// execUpsert reads by the replacement body's _id: absent or expired means
// insert, present means replace (§4.10).
func (t *Txn) execUpsert(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	id, err := resolveID(stmt.Replacement)
	if err != nil {
		return nil, err
	}
	old, found, err := t.engineTxn.Get(h, id)
	if err != nil {
		return nil, err
	}
	newDoc := withID(stmt.Replacement, id)

	var result Result
	if !found {
		if err := t.engineTxn.Put(h, newDoc); err != nil {
			return nil, err
		}
		result.Upserted = 1
		return &Cursor{result: result}, nil
	}
	result.Matched = 1
	if !bytes.Equal(old, newDoc) {
		if err := t.engineTxn.Put(h, newDoc); err != nil {
			return nil, err
		}
		result.Modified = 1
	}
	return &Cursor{result: result}, nil
}

// execMerge reads by the mutation patch's _id: absent or expired means
// insert a fresh document seeded with the patch's fields, present means
// patch the existing document's fields in place (mutate.Merge — §4.10).
func (t *Txn) execMerge(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	id, err := resolveID(stmt.Mutation)
	if err != nil {
		return nil, err
	}
	old, found, err := t.engineTxn.Get(h, id)
	if err != nil {
		return nil, err
	}

	var result Result
	if !found {
		seed := withID(emptyDoc(), id)
		newDoc, _, err := mutate.Merge(seed, stmt.Mutation)
		if err != nil {
			return nil, err
		}
		if err := t.engineTxn.Put(h, newDoc); err != nil {
			return nil, err
		}
		result.Upserted = 1
		return &Cursor{result: result}, nil
	}
	result.Matched = 1
	newDoc, changed, err := mutate.Merge(old, stmt.Mutation)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := t.engineTxn.Put(h, newDoc); err != nil {
			return nil, err
		}
		result.Modified = 1
	}
	return &Cursor{result: result}, nil
}

func emptyDoc() bsoncore.Document {
	idx, buf := bsoncore.AppendDocumentStart(nil)
	buf, _ = bsoncore.AppendDocumentEnd(buf, idx)
	return bsoncore.Document(buf)
}
