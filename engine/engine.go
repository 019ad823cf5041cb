// Package engine implements Slate's transactional core (component C6): it
// wires the catalog, index maintenance, key encoding, and record framing
// packages onto a pluggable kv.Store, exposing the document and catalog
// operations that the planner/executor run against.
package engine

import (
	"time"

	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// SysCF is the reserved column family holding catalog metadata (§6.1, §6.4).
// Collection and index-config keys live here; every other column family is
// named after a user collection and holds only that collection's records and
// index entries.
const SysCF = "_sys_"

// TTLField is the document field Slate treats as an implicit per-document
// expiry (§3, §4.6): every collection indexes it automatically, with no user
// declaration required.
const TTLField = "ttl"

// Clock returns the current time as milliseconds since the Unix epoch.
// Engine accepts one so tests can control expiry deterministically.
type Clock func() int64

func defaultClock() int64 { return time.Now().UnixMilli() }

// Engine is the top-level handle to a Slate database instance over one
// kv.Store.
type Engine struct {
	store kv.Store
	clock Clock
}

// Open wraps store, ensuring the reserved system column family exists.
func Open(store kv.Store, clock Clock) (*Engine, error) {
	if clock == nil {
		clock = defaultClock
	}
	if err := store.CreateCF(SysCF); err != nil {
		return nil, slerrors.Store("create system column family", err)
	}
	return &Engine{store: store, clock: clock}, nil
}

// Begin starts a new transaction. Read-only transactions see a consistent
// snapshot and never block or conflict with concurrent writers (§5).
func (e *Engine) Begin(readOnly bool) (*Txn, error) {
	kvTxn, err := e.store.Begin(readOnly)
	if err != nil {
		return nil, slerrors.Store("begin transaction", err)
	}
	sysCF, err := kvTxn.CF(SysCF)
	if err != nil {
		kvTxn.Rollback()
		return nil, slerrors.Store("resolve system column family", err)
	}
	return &Txn{kvTxn: kvTxn, sysCF: sysCF, now: e.clock()}, nil
}
