package memkv

import (
	"bytes"

	"github.com/google/btree"

	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
	"github.com/kartikbazzad/slate/pkg/logger"
)

// Txn is a snapshot-isolated transaction over Store. Every column family it
// touches is a cloned (copy-on-write) tree; mutations are local until
// Commit() publishes them back onto the store.
type Txn struct {
	store    *Store
	readOnly bool
	trees    map[string]*btree.BTreeG[entry]
	dropped  map[string]struct{}
	done     bool
}

func (t *Txn) resolve(cf kv.Cf) (string, *btree.BTreeG[entry], error) {
	name, ok := cf.(string)
	if !ok {
		return "", nil, slerrors.Store("invalid column family handle", nil)
	}
	tree, ok := t.trees[name]
	if !ok {
		return "", nil, slerrors.CollectionNotFound(name)
	}
	return name, tree, nil
}

func (t *Txn) CF(name string) (kv.Cf, error) {
	if _, ok := t.trees[name]; !ok {
		return nil, slerrors.CollectionNotFound(name)
	}
	return name, nil
}

func (t *Txn) Get(cf kv.Cf, key []byte) ([]byte, error) {
	_, tree, err := t.resolve(cf)
	if err != nil {
		return nil, err
	}
	e, ok := tree.Get(entry{Key: key})
	if !ok {
		return nil, nil
	}
	return e.Value, nil
}

func (t *Txn) MultiGet(cf kv.Cf, keys [][]byte) ([][]byte, error) {
	_, tree, err := t.resolve(cf)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if e, ok := tree.Get(entry{Key: k}); ok {
			out[i] = e.Value
		}
	}
	return out, nil
}

func hasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}

func (t *Txn) scanPrefix(cf kv.Cf, prefix []byte) ([]entry, error) {
	_, tree, err := t.resolve(cf)
	if err != nil {
		return nil, err
	}
	var out []entry
	tree.AscendGreaterOrEqual(entry{Key: prefix}, func(e entry) bool {
		if !hasPrefix(e.Key, prefix) {
			return false
		}
		out = append(out, entry{Key: append([]byte(nil), e.Key...), Value: append([]byte(nil), e.Value...)})
		return true
	})
	return out, nil
}

func (t *Txn) ScanPrefix(cf kv.Cf, prefix []byte) (kv.Iterator, error) {
	entries, err := t.scanPrefix(cf, prefix)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{entries: entries, idx: -1}, nil
}

func (t *Txn) ScanPrefixRev(cf kv.Cf, prefix []byte) (kv.Iterator, error) {
	entries, err := t.scanPrefix(cf, prefix)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return &sliceIterator{entries: entries, idx: -1}, nil
}

func (t *Txn) Put(cf kv.Cf, key, value []byte) error {
	if t.readOnly {
		return slerrors.Store("write on read-only transaction", nil)
	}
	_, tree, err := t.resolve(cf)
	if err != nil {
		return err
	}
	tree.ReplaceOrInsert(entry{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
	return nil
}

func (t *Txn) PutBatch(cf kv.Cf, entries []kv.KV) error {
	if t.readOnly {
		return slerrors.Store("write on read-only transaction", nil)
	}
	_, tree, err := t.resolve(cf)
	if err != nil {
		return err
	}
	for _, e := range entries {
		tree.ReplaceOrInsert(entry{Key: append([]byte(nil), e.Key...), Value: append([]byte(nil), e.Value...)})
	}
	return nil
}

func (t *Txn) Delete(cf kv.Cf, key []byte) error {
	if t.readOnly {
		return slerrors.Store("write on read-only transaction", nil)
	}
	_, tree, err := t.resolve(cf)
	if err != nil {
		return err
	}
	tree.Delete(entry{Key: key})
	return nil
}

func (t *Txn) CreateCF(name string) error {
	if t.readOnly {
		return slerrors.Store("schema change on read-only transaction", nil)
	}
	if _, ok := t.trees[name]; ok {
		delete(t.dropped, name)
		return nil
	}
	t.trees[name] = btree.NewG(degree, entryLess)
	delete(t.dropped, name)
	return nil
}

func (t *Txn) DropCF(name string) error {
	if t.readOnly {
		return slerrors.Store("schema change on read-only transaction", nil)
	}
	delete(t.trees, name)
	t.dropped[name] = struct{}{}
	return nil
}

func (t *Txn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.readOnly {
		return nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for name, tree := range t.trees {
		t.store.cfs[name] = tree
	}
	for name := range t.dropped {
		delete(t.store.cfs, name)
	}
	logger.Debug("committed transaction", "column_families", len(t.trees), "dropped", len(t.dropped))
	return nil
}

func (t *Txn) Rollback() error {
	t.done = true
	return nil
}

// sliceIterator adapts a pre-materialized slice of entries to kv.Iterator.
type sliceIterator struct {
	entries []entry
	idx     int
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx < len(it.entries)
}

func (it *sliceIterator) Key() []byte   { return it.entries[it.idx].Key }
func (it *sliceIterator) Value() []byte { return it.entries[it.idx].Value }
func (it *sliceIterator) Err() error    { return nil }
func (it *sliceIterator) Close() error  { return nil }
