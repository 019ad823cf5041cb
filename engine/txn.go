package engine

import (
	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// Txn is a single Slate transaction: a kv.Txn plus the resolved system
// column family and the timestamp every TTL comparison within it is judged
// against (§5 — one wall-clock reading per transaction, not per operation,
// so a long-running transaction sees a consistent notion of "now").
type Txn struct {
	kvTxn kv.Txn
	sysCF kv.Cf
	now   int64
}

// Now returns the timestamp (milliseconds since epoch) this transaction uses
// for every expiry comparison.
func (t *Txn) Now() int64 { return t.now }

// Commit publishes every write made through this transaction.
func (t *Txn) Commit() error {
	if err := t.kvTxn.Commit(); err != nil {
		return slerrors.Store("commit transaction", err)
	}
	return nil
}

// Rollback discards every write made through this transaction.
func (t *Txn) Rollback() error {
	if err := t.kvTxn.Rollback(); err != nil {
		return slerrors.Store("rollback transaction", err)
	}
	return nil
}
