package engine

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/internal/catalog"
	"github.com/kartikbazzad/slate/internal/indexdiff"
	"github.com/kartikbazzad/slate/internal/keycodec"
	"github.com/kartikbazzad/slate/internal/record"
	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
	"github.com/kartikbazzad/slate/pkg/logger"
)

// CreateIndex declares field as indexed on collection and backfills entries
// for every document currently stored there (§4.9 — a new index must be
// usable by the planner immediately, not just for future writes).
// Idempotent: declaring an already-indexed field is a no-op.
func (t *Txn) CreateIndex(collection, field string) error {
	exists, err := catalog.CollectionExists(t.kvTxn, t.sysCF, collection)
	if err != nil {
		return err
	}
	if !exists {
		return slerrors.CollectionNotFound(collection)
	}
	already, err := catalog.IndexExists(t.kvTxn, t.sysCF, collection, field)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := catalog.CreateIndexMeta(t.kvTxn, t.sysCF, collection, field); err != nil {
		return err
	}
	logger.Debug("backfilling index", "collection", collection, "field", field)

	cf, err := t.kvTxn.CF(collection)
	if err != nil {
		return slerrors.Store("resolve collection column family", err)
	}
	it, err := t.kvTxn.ScanPrefix(cf, keycodec.PrefixRecord(collection))
	if err != nil {
		return slerrors.Store("scan records for backfill", err)
	}
	defer it.Close()
	for it.Next() {
		dk, ok := keycodec.DecodeKey(it.Key())
		if !ok {
			return slerrors.InvalidKey("malformed record key during index backfill")
		}
		hasTTL, ttlMs, doc, err := record.Unwrap(it.Value())
		if err != nil {
			return err
		}
		if err := indexdiff.Apply(t.kvTxn, cf, collection, []string{field}, bsoncore.Document(doc), dk.DocID, hasTTL, ttlMs, t.now); err != nil {
			return err
		}
	}
	return it.Err()
}

// DropIndex removes field's declaration on collection and every entry the
// index holds. A no-op if field was never indexed. Dropping the implicit
// ttl field is not supported — TTL maintenance is not optional.
func (t *Txn) DropIndex(collection, field string) error {
	if field == TTLField {
		return slerrors.InvalidQuery("the ttl index cannot be dropped")
	}
	exists, err := catalog.IndexExists(t.kvTxn, t.sysCF, collection, field)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	cf, err := t.kvTxn.CF(collection)
	if err != nil {
		return slerrors.Store("resolve collection column family", err)
	}
	if err := deletePrefix(t.kvTxn, cf, keycodec.PrefixIndexField(collection, field)); err != nil {
		return err
	}
	if err := deletePrefix(t.kvTxn, cf, keycodec.PrefixIndexMapField(collection, field)); err != nil {
		return err
	}
	return catalog.DropIndexMeta(t.kvTxn, t.sysCF, collection, field)
}

// deletePrefix deletes every key under prefix in cf. Keys are collected
// before deleting since mutating a tree mid-scan is backend-defined
// behavior this package doesn't rely on.
func deletePrefix(txn kv.Txn, cf kv.Cf, prefix []byte) error {
	it, err := txn.ScanPrefix(cf, prefix)
	if err != nil {
		return slerrors.Store("scan for delete", err)
	}
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	scanErr := it.Err()
	it.Close()
	if scanErr != nil {
		return slerrors.Store("scan for delete", scanErr)
	}
	for _, k := range keys {
		if err := txn.Delete(cf, k); err != nil {
			return slerrors.Store("delete key", err)
		}
	}
	return nil
}
