// Package sweep runs the background TTL sweep: on a fixed interval, every
// collection has purge_before(now) applied to it, deleting documents whose
// ttl has passed (component C11, §4.11).
package sweep

import (
	"log/slog"
	"time"

	"github.com/kartikbazzad/slate/engine"
)

// Sweeper owns the single background goroutine a Database spawns. Purge is
// best-effort: a failed interval is logged and retried on the next tick,
// never propagated to a caller.
type Sweeper struct {
	engine   *engine.Engine
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// New builds a Sweeper. It does not start running until Start is called.
func New(e *engine.Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		engine:   e,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep goroutine. Call once.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop signals the sweep to exit and blocks until it has, per §9's
// "joining its handle is mandatory during database teardown." Safe to call
// at most once.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	txn, err := s.engine.Begin(false)
	if err != nil {
		s.logger.Error("ttl sweep: begin transaction failed", "error", err)
		return
	}
	committed := false
	defer func() {
		if !committed {
			txn.Rollback()
		}
	}()

	names, err := txn.ListCollections()
	if err != nil {
		s.logger.Error("ttl sweep: list collections failed", "error", err)
		return
	}

	now := txn.Now()
	for _, name := range names {
		h, err := txn.Collection(name)
		if err != nil {
			s.logger.Error("ttl sweep: resolve collection failed", "collection", name, "error", err)
			continue
		}
		n, err := txn.PurgeBefore(h, now)
		if err != nil {
			s.logger.Error("ttl sweep: purge failed", "collection", name, "error", err)
			continue
		}
		if n > 0 {
			s.logger.Debug("ttl sweep: purged expired documents", "collection", name, "count", n)
		}
	}

	if err := txn.Commit(); err != nil {
		s.logger.Error("ttl sweep: commit failed", "error", err)
		return
	}
	committed = true
}
