// Package kv defines the pluggable ordered key-value store contract that
// the Slate engine is built on top of (§6.1) — a direct Go port of the
// Store/Transaction collaborator traits.
package kv

// Cf is an opaque, backend-defined column-family handle. Implementations
// must make it cheaply copyable (e.g. an integer id or small pointer).
type Cf interface{}

// KV is a single key/value pair, used for batched writes.
type KV struct {
	Key   []byte
	Value []byte
}

// Store is the top-level handle to a KV backend: it creates transactions and
// manages column families.
type Store interface {
	// Begin opens a new transaction. Read-only transactions see a
	// snapshot as of this call and never conflict with concurrent writers.
	Begin(readOnly bool) (Txn, error)
	CreateCF(name string) error
	DropCF(name string) error
	// DeleteRange deletes every key in [start, end) within cf, outside of
	// transaction semantics — see the commentary on the Rust trait this
	// was ported from: concurrent transaction iterators holding a
	// snapshot won't observe the delete, and transactions in flight may
	// re-insert keys that were just wiped.
	DeleteRange(cf string, start, end []byte) error
}

// Txn is a single read or read-write transaction.
type Txn interface {
	// CF resolves a column family by name. Must be called before any
	// reads or writes against that name within this transaction.
	CF(name string) (Cf, error)

	Get(cf Cf, key []byte) ([]byte, error) // nil, nil if absent
	MultiGet(cf Cf, keys [][]byte) ([][]byte, error)
	ScanPrefix(cf Cf, prefix []byte) (Iterator, error)
	ScanPrefixRev(cf Cf, prefix []byte) (Iterator, error)

	Put(cf Cf, key, value []byte) error
	PutBatch(cf Cf, entries []KV) error
	Delete(cf Cf, key []byte) error

	CreateCF(name string) error
	DropCF(name string) error

	Commit() error
	Rollback() error
}

// Iterator walks a sorted range of key/value pairs.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}
