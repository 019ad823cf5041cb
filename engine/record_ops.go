package engine

import (
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/kartikbazzad/slate/internal/indexdiff"
	"github.com/kartikbazzad/slate/internal/keycodec"
	"github.com/kartikbazzad/slate/internal/record"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
	"github.com/kartikbazzad/slate/pkg/logger"
)

// Get fetches a document by its resolved _id. Returns found=false if the key
// is absent or its record has expired (§4.6 — an expired record reads as a
// miss even before the sweeper has physically removed it).
func (t *Txn) Get(h *CollectionHandle, docID keycodec.Value) (bsoncore.Document, bool, error) {
	key := keycodec.EncodeRecordKey(h.Name, docID)
	raw, err := t.kvTxn.Get(h.CF, key)
	if err != nil {
		return nil, false, slerrors.Store("get record", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	if record.IsExpired(raw, t.now) {
		return nil, false, nil
	}
	return bsoncore.Document(record.Document(raw)), true, nil
}

// Put unconditionally upserts doc by its _id, maintaining every declared
// index plus the implicit ttl index. Used by replace/merge/upsert paths.
func (t *Txn) Put(h *CollectionHandle, doc bsoncore.Document) error {
	docID, ok := keycodec.Extract(doc, "_id")
	if !ok {
		return slerrors.InvalidDocument("document has no supported _id field")
	}
	return t.putAt(h, docID, doc)
}

// PutNX inserts doc only if no live record exists under its _id, generating
// a string _id when doc has none (§4.8 insert semantics). Returns the
// resolved _id.
func (t *Txn) PutNX(h *CollectionHandle, doc bsoncore.Document) (keycodec.Value, error) {
	docID, doc, err := resolveInsertID(doc)
	if err != nil {
		return keycodec.Value{}, err
	}
	key := keycodec.EncodeRecordKey(h.Name, docID)
	existing, err := t.kvTxn.Get(h.CF, key)
	if err != nil {
		return keycodec.Value{}, slerrors.Store("get record", err)
	}
	if existing != nil && !record.IsExpired(existing, t.now) {
		logger.Warn("rejected duplicate insert", "collection", h.Name, "id", docID.String())
		return keycodec.Value{}, slerrors.DuplicateKey(docID.String())
	}
	if err := t.putAt(h, docID, doc); err != nil {
		return keycodec.Value{}, err
	}
	return docID, nil
}

func (t *Txn) putAt(h *CollectionHandle, docID keycodec.Value, doc bsoncore.Document) error {
	hasTTL, ttlMs := extractTTL(doc)
	key := keycodec.EncodeRecordKey(h.Name, docID)
	if err := t.kvTxn.Put(h.CF, key, record.Wrap(doc, hasTTL, ttlMs)); err != nil {
		return slerrors.Store("put record", err)
	}
	return indexdiff.Apply(t.kvTxn, h.CF, h.Name, h.indexedFields(), doc, docID, hasTTL, ttlMs, t.now)
}

// Delete removes a document and every index/reverse-map entry referring to
// it. A no-op if the record does not exist.
func (t *Txn) Delete(h *CollectionHandle, docID keycodec.Value) error {
	key := keycodec.EncodeRecordKey(h.Name, docID)
	if err := t.kvTxn.Delete(h.CF, key); err != nil {
		return slerrors.Store("delete record", err)
	}
	return indexdiff.Remove(t.kvTxn, h.CF, h.Name, h.indexedFields(), docID)
}

// extractTTL reads the ttl field, if any: only a DateTime value counts as an
// expiry (§4.6) — any other type leaves the document without one.
func extractTTL(doc bsoncore.Document) (hasTTL bool, ttlMs int64) {
	val, err := doc.LookupErr(TTLField)
	if err != nil || val.Type != bsontype.DateTime {
		return false, 0
	}
	ms, ok := val.DateTimeOK()
	if !ok {
		return false, 0
	}
	return true, ms
}

// resolveInsertID extracts doc's _id, generating a fresh UUID-string one and
// returning an amended copy of doc if the field is absent entirely. A
// present-but-unsupported _id type is an error rather than silently
// replaced.
func resolveInsertID(doc bsoncore.Document) (keycodec.Value, bsoncore.Document, error) {
	val, err := doc.LookupErr("_id")
	if err != nil {
		generated := uuid.NewString()
		amended := prependIDField(doc, generated)
		v, ok := keycodec.Extract(amended, "_id")
		if !ok {
			return keycodec.Value{}, nil, slerrors.InvalidDocument("failed to assign a generated _id")
		}
		return v, amended, nil
	}
	v, ok := keycodec.FromRawValue(val)
	if !ok {
		return keycodec.Value{}, nil, slerrors.InvalidDocument("unsupported _id type")
	}
	return v, doc, nil
}

// prependIDField returns a copy of doc with `_id: id` inserted as its first
// element.
func prependIDField(doc bsoncore.Document, id string) bsoncore.Document {
	idx, buf := bsoncore.AppendDocumentStart(nil)
	buf = bsoncore.AppendStringElement(buf, "_id", id)
	elems, _ := doc.Elements()
	for _, e := range elems {
		buf = append(buf, e...)
	}
	buf, _ = bsoncore.AppendDocumentEnd(buf, idx)
	return bsoncore.Document(buf)
}
