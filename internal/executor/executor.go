// Package executor interprets a planner.Node tree against a live
// engine.Txn, pulling rows through the plan one at a time (component C10).
package executor

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/filter"
	"github.com/kartikbazzad/slate/internal/keycodec"
	"github.com/kartikbazzad/slate/internal/planner"
	"github.com/kartikbazzad/slate/internal/rawbson"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// Row is one document surfaced by the executor, with its resolved _id kept
// alongside for callers (deletes, updates) that need to write back by key.
type Row struct {
	ID  keycodec.Value
	Doc bsoncore.Document
}

// Iterator is a pull-based stream of Rows. Close must be called once the
// caller is done, whether or not Next ever returned false.
type Iterator interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Open builds a live Iterator for plan, rooted at handle within txn.
func Open(txn *engine.Txn, h *engine.CollectionHandle, plan *planner.Plan) (Iterator, error) {
	return build(txn, h, plan.Root)
}

func build(txn *engine.Txn, h *engine.CollectionHandle, n *planner.Node) (Iterator, error) {
	switch n.Kind {
	case planner.KindScan:
		return newScanIter(txn, h)
	case planner.KindIdLookup:
		return newIDIter(txn, h, n.ID)
	case planner.KindIndexScan:
		return newIndexIter(txn, h, n)
	case planner.KindIndexMerge:
		return newMergeIter(txn, h, n)
	case planner.KindKeyLookup:
		child, err := build(txn, h, n.Child)
		if err != nil {
			return nil, err
		}
		return &keyLookupIter{txn: txn, h: h, child: child}, nil
	case planner.KindFilter:
		child, err := build(txn, h, n.Child)
		if err != nil {
			return nil, err
		}
		return &filterIter{child: child, expr: n.Residual}, nil
	case planner.KindSort:
		child, err := build(txn, h, n.Child)
		if err != nil {
			return nil, err
		}
		return newSortIter(child, n.SortField, n.SortDesc)
	case planner.KindLimit:
		child, err := build(txn, h, n.Child)
		if err != nil {
			return nil, err
		}
		return &limitIter{child: child, skip: n.Skip, remaining: n.Limit, unbounded: n.Limit == 0}, nil
	default:
		return nil, slerrors.InvalidQuery("unrecognized plan node")
	}
}

// --- scan ---

type scanIter struct {
	inner *engine.RecordIterator
}

func newScanIter(txn *engine.Txn, h *engine.CollectionHandle) (Iterator, error) {
	inner, err := txn.Scan(h)
	if err != nil {
		return nil, err
	}
	return &scanIter{inner: inner}, nil
}

func (s *scanIter) Next() bool { return s.inner.Next() }
func (s *scanIter) Row() Row {
	r := s.inner.Row()
	return Row{ID: r.ID, Doc: r.Doc}
}
func (s *scanIter) Err() error   { return s.inner.Err() }
func (s *scanIter) Close() error { return s.inner.Close() }

// --- id lookup (at most one row) ---

type idIter struct {
	row   Row
	found bool
	used  bool
}

func newIDIter(txn *engine.Txn, h *engine.CollectionHandle, id keycodec.Value) (Iterator, error) {
	doc, found, err := txn.Get(h, id)
	if err != nil {
		return nil, err
	}
	return &idIter{row: Row{ID: id, Doc: doc}, found: found}, nil
}

func (i *idIter) Next() bool {
	if i.used || !i.found {
		return false
	}
	i.used = true
	return true
}
func (i *idIter) Row() Row   { return i.row }
func (i *idIter) Err() error { return nil }
func (i *idIter) Close() error {
	return nil
}

// --- index scan (doc ids only — KeyLookup fetches the document) ---

type indexIter struct {
	inner *engine.IndexIterator
}

func newIndexIter(txn *engine.Txn, h *engine.CollectionHandle, n *planner.Node) (Iterator, error) {
	inner, err := txn.ScanIndex(h, n.Field, n.Range, n.Reverse)
	if err != nil {
		return nil, err
	}
	return &indexIter{inner: inner}, nil
}

func (x *indexIter) Next() bool { return x.inner.Next() }
func (x *indexIter) Row() Row {
	return Row{ID: x.inner.Row().DocID}
}
func (x *indexIter) Err() error   { return x.inner.Err() }
func (x *indexIter) Close() error { return x.inner.Close() }

// --- index merge: union of several sources, deduplicated by doc id ---

type mergeIter struct {
	rows []Row
	idx  int
}

func newMergeIter(txn *engine.Txn, h *engine.CollectionHandle, n *planner.Node) (Iterator, error) {
	seen := map[string]struct{}{}
	var rows []Row
	for _, child := range n.Children {
		it, err := build(txn, h, child)
		if err != nil {
			return nil, err
		}
		for it.Next() {
			r := it.Row()
			key := string(r.ID.Bytes)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			rows = append(rows, r)
		}
		err = it.Err()
		closeErr := it.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, closeErr
		}
	}
	return &mergeIter{rows: rows, idx: -1}, nil
}

func (m *mergeIter) Next() bool {
	m.idx++
	return m.idx < len(m.rows)
}
func (m *mergeIter) Row() Row   { return m.rows[m.idx] }
func (m *mergeIter) Err() error { return nil }
func (m *mergeIter) Close() error {
	return nil
}

// --- key lookup: fetch the full document for each doc id a child yields ---

type keyLookupIter struct {
	txn   *engine.Txn
	h     *engine.CollectionHandle
	child Iterator
	cur   Row
	err   error
}

func (k *keyLookupIter) Next() bool {
	for k.child.Next() {
		r := k.child.Row()
		doc, found, err := k.txn.Get(k.h, r.ID)
		if err != nil {
			k.err = err
			return false
		}
		if !found {
			// Deleted or expired since the index entry was read; skip it
			// rather than surface a stale row.
			continue
		}
		k.cur = Row{ID: r.ID, Doc: doc}
		return true
	}
	return false
}
func (k *keyLookupIter) Row() Row { return k.cur }
func (k *keyLookupIter) Err() error {
	if k.err != nil {
		return k.err
	}
	return k.child.Err()
}
func (k *keyLookupIter) Close() error { return k.child.Close() }

// --- residual filter ---

type filterIter struct {
	child Iterator
	expr  *filter.Expr
	cur   Row
}

func (f *filterIter) Next() bool {
	for f.child.Next() {
		r := f.child.Row()
		if filter.Matches(r.Doc, f.expr) {
			f.cur = r
			return true
		}
	}
	return false
}
func (f *filterIter) Row() Row     { return f.cur }
func (f *filterIter) Err() error   { return f.child.Err() }
func (f *filterIter) Close() error { return f.child.Close() }

// --- sort: buffers every row, then replays in order ---

type sortIter struct {
	rows []Row
	idx  int
}

func newSortIter(child Iterator, field string, desc bool) (Iterator, error) {
	var rows []Row
	for child.Next() {
		rows = append(rows, child.Row())
	}
	err := child.Err()
	closeErr := child.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	sort.SliceStable(rows, func(i, j int) bool {
		less, ok := lessByField(rows[i].Doc, rows[j].Doc, field)
		if !ok {
			return false
		}
		if desc {
			return !less
		}
		return less
	})
	return &sortIter{rows: rows, idx: -1}, nil
}

// lessByField compares two documents' field values for Sort. A document
// missing the field sorts before one that has it, mirroring the ascending
// index-scan ordering missing values would otherwise get (they have no
// index entry at all).
func lessByField(a, b bsoncore.Document, field string) (bool, bool) {
	va, aFound := rawbson.FindFieldPath(a, field)
	vb, bFound := rawbson.FindFieldPath(b, field)
	if !aFound && !bFound {
		return false, false
	}
	if !aFound {
		return true, true
	}
	if !bFound {
		return false, true
	}
	cmp, ok := rawbson.Compare(va, vb)
	if !ok {
		return false, false
	}
	return cmp < 0, true
}

func (s *sortIter) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}
func (s *sortIter) Row() Row     { return s.rows[s.idx] }
func (s *sortIter) Err() error   { return nil }
func (s *sortIter) Close() error { return nil }

// --- limit (with an optional leading skip) ---

type limitIter struct {
	child     Iterator
	skip      int64
	skipped   bool
	remaining int64
	unbounded bool
	cur       Row
}

func (l *limitIter) Next() bool {
	if !l.skipped {
		for i := int64(0); i < l.skip; i++ {
			if !l.child.Next() {
				l.skipped = true
				return false
			}
		}
		l.skipped = true
	}
	if !l.unbounded && l.remaining <= 0 {
		return false
	}
	if !l.child.Next() {
		return false
	}
	if !l.unbounded {
		l.remaining--
	}
	l.cur = l.child.Row()
	return true
}
func (l *limitIter) Row() Row     { return l.cur }
func (l *limitIter) Err() error   { return l.child.Err() }
func (l *limitIter) Close() error { return l.child.Close() }
