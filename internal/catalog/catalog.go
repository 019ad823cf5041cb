// Package catalog manages Slate's system metadata (component C4): the set
// of collections and, per collection, the set of declared secondary index
// fields. All of it lives in the reserved `_sys_` column family, keyed with
// the Collection and IndexConfig key families (§6.4).
package catalog

import (
	"github.com/kartikbazzad/slate/internal/keycodec"
	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// CollectionExists reports whether name has a catalog entry.
func CollectionExists(txn kv.Txn, sysCF kv.Cf, name string) (bool, error) {
	val, err := txn.Get(sysCF, keycodec.EncodeCollectionKey(name))
	if err != nil {
		return false, slerrors.Store("read collection catalog entry", err)
	}
	return val != nil, nil
}

// CreateCollection registers name in the catalog and opens its backing
// column family. Idempotent: creating an already-registered collection is a
// no-op, matching the engine's "collections are declared once" model.
func CreateCollection(txn kv.Txn, sysCF kv.Cf, name string) error {
	exists, err := CollectionExists(txn, sysCF, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := txn.CreateCF(name); err != nil {
		return slerrors.Store("create collection column family", err)
	}
	if err := txn.Put(sysCF, keycodec.EncodeCollectionKey(name), []byte(name)); err != nil {
		return slerrors.Store("write collection catalog entry", err)
	}
	return nil
}

// DropCollectionMeta removes name's catalog entry, its index-config entries,
// and drops its backing column family outright — a single O(1) operation
// that takes every record and index entry with it.
func DropCollectionMeta(txn kv.Txn, sysCF kv.Cf, name string) error {
	fields, err := ListIndexes(txn, sysCF, name)
	if err != nil {
		return err
	}
	for _, field := range fields {
		if err := txn.Delete(sysCF, keycodec.EncodeIndexConfigKey(name, field)); err != nil {
			return slerrors.Store("delete index config entry", err)
		}
	}
	if err := txn.Delete(sysCF, keycodec.EncodeCollectionKey(name)); err != nil {
		return slerrors.Store("delete collection catalog entry", err)
	}
	if err := txn.DropCF(name); err != nil {
		return slerrors.Store("drop collection column family", err)
	}
	return nil
}

// ListCollections returns every registered collection name, in catalog
// (lexicographic) order.
func ListCollections(txn kv.Txn, sysCF kv.Cf) ([]string, error) {
	it, err := txn.ScanPrefix(sysCF, keycodec.PrefixCollection())
	if err != nil {
		return nil, slerrors.Store("scan collection catalog", err)
	}
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, string(it.Value()))
	}
	if err := it.Err(); err != nil {
		return nil, slerrors.Store("scan collection catalog", err)
	}
	return out, nil
}

// IndexExists reports whether field has a declared index on collection.
func IndexExists(txn kv.Txn, sysCF kv.Cf, collection, field string) (bool, error) {
	val, err := txn.Get(sysCF, keycodec.EncodeIndexConfigKey(collection, field))
	if err != nil {
		return false, slerrors.Store("read index config entry", err)
	}
	return val != nil, nil
}

// CreateIndexMeta registers field as an index on collection. Backfilling the
// index entries for existing documents is the caller's responsibility
// (engine.Txn.CreateIndex) — this only records the declaration.
func CreateIndexMeta(txn kv.Txn, sysCF kv.Cf, collection, field string) error {
	if err := txn.Put(sysCF, keycodec.EncodeIndexConfigKey(collection, field), []byte(field)); err != nil {
		return slerrors.Store("write index config entry", err)
	}
	return nil
}

// DropIndexMeta removes field's index declaration. Removing the index
// entries themselves is the caller's responsibility.
func DropIndexMeta(txn kv.Txn, sysCF kv.Cf, collection, field string) error {
	if err := txn.Delete(sysCF, keycodec.EncodeIndexConfigKey(collection, field)); err != nil {
		return slerrors.Store("delete index config entry", err)
	}
	return nil
}

// ListIndexes returns every field with a declared index on collection, in
// catalog order.
func ListIndexes(txn kv.Txn, sysCF kv.Cf, collection string) ([]string, error) {
	it, err := txn.ScanPrefix(sysCF, keycodec.PrefixIndexConfig(collection))
	if err != nil {
		return nil, slerrors.Store("scan index config", err)
	}
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, string(it.Value()))
	}
	if err := it.Err(); err != nil {
		return nil, slerrors.Store("scan index config", err)
	}
	return out, nil
}
