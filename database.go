// Package slate implements an embedded BSON document database: collections
// with secondary indexes, ACID transactions over a pluggable byte-oriented
// store, per-document TTL expiry, and a query planner/executor pipeline
// (see SPEC_FULL.md for the full component breakdown).
package slate

import (
	"log/slog"
	"time"

	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/sweep"
	"github.com/kartikbazzad/slate/kv"
)

// defaultTTLSweepInterval is used when Options.TTLSweepInterval is zero
// (§6.5: "ttl_sweep_interval_secs (default 10)").
const defaultTTLSweepInterval = 10 * time.Second

// Options configures a database at open time (§6.5).
type Options struct {
	// TTLSweepInterval is the wall-clock period of the background TTL
	// sweep. Zero means defaultTTLSweepInterval.
	TTLSweepInterval time.Duration

	// Clock supplies "now" in milliseconds since the Unix epoch, for every
	// expiry comparison a transaction makes. Nil means wall-clock time.
	// Tests inject a fixed or steppable clock for determinism.
	Clock engine.Clock

	// Logger receives the TTL sweep's diagnostic logging. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Database is the top-level handle to a Slate instance over one kv.Store. It
// owns the background TTL sweep goroutine for as long as it is open.
type Database struct {
	engine  *engine.Engine
	sweeper *sweep.Sweeper
}

// Open wires store into a running Database and starts its TTL sweep. Call
// Close to stop the sweep and release the reference store holds.
func Open(store kv.Store, opts Options) (*Database, error) {
	e, err := engine.Open(store, opts.Clock)
	if err != nil {
		return nil, err
	}

	interval := opts.TTLSweepInterval
	if interval <= 0 {
		interval = defaultTTLSweepInterval
	}
	s := sweep.New(e, interval, opts.Logger)
	s.Start()

	return &Database{engine: e, sweeper: s}, nil
}

// Close stops the TTL sweep, joining its goroutine before returning (§5,
// §9 — joining the sweep handle is mandatory during teardown).
func (db *Database) Close() error {
	db.sweeper.Stop()
	return nil
}

// Begin starts a new transaction. Read-only transactions never block or
// conflict with concurrent writers; read-write transactions see their own
// uncommitted writes (§5).
func (db *Database) Begin(readOnly bool) (*Txn, error) {
	et, err := db.engine.Begin(readOnly)
	if err != nil {
		return nil, err
	}
	return &Txn{engineTxn: et}, nil
}
