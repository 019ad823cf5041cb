// Package memkv implements kv.Store as an in-memory ordered map backed by
// github.com/google/btree, using the tree's copy-on-write Clone() to give
// every transaction a point-in-time snapshot in O(1).
package memkv

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// SysCF is the reserved column family name holding catalog entries (§6.1).
const SysCF = "_sys_"

const degree = 32

type entry struct {
	Key   []byte
	Value []byte
}

func entryLess(a, b entry) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// Store is an in-memory, copy-on-write backed kv.Store.
type Store struct {
	mu  sync.Mutex
	cfs map[string]*btree.BTreeG[entry]
}

// New returns a Store with the reserved _sys_ column family already created.
func New() *Store {
	s := &Store{cfs: map[string]*btree.BTreeG[entry]{}}
	s.cfs[SysCF] = btree.NewG(degree, entryLess)
	return s
}

func (s *Store) Begin(readOnly bool) (kv.Txn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]*btree.BTreeG[entry], len(s.cfs))
	for name, t := range s.cfs {
		snapshot[name] = t.Clone()
	}
	return &Txn{
		store:    s,
		readOnly: readOnly,
		trees:    snapshot,
		dropped:  map[string]struct{}{},
	}, nil
}

func (s *Store) CreateCF(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cfs[name]; ok {
		return nil
	}
	s.cfs[name] = btree.NewG(degree, entryLess)
	return nil
}

func (s *Store) DropCF(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cfs, name)
	return nil
}

func (s *Store) DeleteRange(cf string, start, end []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.cfs[cf]
	if !ok {
		return slerrors.CollectionNotFound(cf)
	}
	var toDelete []entry
	tree.AscendRange(entry{Key: start}, entry{Key: end}, func(e entry) bool {
		toDelete = append(toDelete, e)
		return true
	})
	for _, e := range toDelete {
		tree.Delete(e)
	}
	return nil
}
