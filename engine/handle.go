package engine

import (
	"github.com/kartikbazzad/slate/internal/catalog"
	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// CollectionHandle pins a collection's column family and its declared index
// fields as of the moment it was opened (§5, §9): a handle does not observe
// index declarations made later in the same transaction, and using a handle
// across a commit/rollback boundary is undefined — callers must re-resolve.
type CollectionHandle struct {
	Name    string
	CF      kv.Cf
	Indexes []string
}

// indexedFields returns the handle's declared fields plus the implicit ttl
// field, which every collection indexes whether or not it was declared.
func (h *CollectionHandle) indexedFields() []string {
	return append(append([]string{}, h.Indexes...), TTLField)
}

// IsIndexed reports whether field has a secondary index, counting the
// implicit ttl field even though it is never in h.Indexes.
func (h *CollectionHandle) IsIndexed(field string) bool {
	if field == TTLField {
		return true
	}
	for _, f := range h.Indexes {
		if f == field {
			return true
		}
	}
	return false
}

// Collection resolves name to a handle, failing if it has no catalog entry.
func (t *Txn) Collection(name string) (*CollectionHandle, error) {
	exists, err := catalog.CollectionExists(t.kvTxn, t.sysCF, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, slerrors.CollectionNotFound(name)
	}
	fields, err := catalog.ListIndexes(t.kvTxn, t.sysCF, name)
	if err != nil {
		return nil, err
	}
	cf, err := t.kvTxn.CF(name)
	if err != nil {
		return nil, slerrors.Store("resolve collection column family", err)
	}
	return &CollectionHandle{Name: name, CF: cf, Indexes: fields}, nil
}

// CreateCollection registers name in the catalog, opening its column family.
// Idempotent.
func (t *Txn) CreateCollection(name string) error {
	return catalog.CreateCollection(t.kvTxn, t.sysCF, name)
}

// DropCollection removes name and everything in it: every record, every
// index entry, and the catalog entries describing it. A no-op if name does
// not exist.
func (t *Txn) DropCollection(name string) error {
	exists, err := catalog.CollectionExists(t.kvTxn, t.sysCF, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return catalog.DropCollectionMeta(t.kvTxn, t.sysCF, name)
}

// ListCollections returns every registered collection name.
func (t *Txn) ListCollections() ([]string, error) {
	return catalog.ListCollections(t.kvTxn, t.sysCF)
}

// ListIndexes returns collection's declared index fields, not including the
// implicit ttl field.
func (t *Txn) ListIndexes(collection string) ([]string, error) {
	return catalog.ListIndexes(t.kvTxn, t.sysCF, collection)
}
