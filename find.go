package slate

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/executor"
	"github.com/kartikbazzad/slate/internal/rawbson"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

func (t *Txn) execFind(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	plan, multiSort, err := buildPlan(h, stmt, 0)
	if err != nil {
		return nil, err
	}
	it, err := executor.Open(t.engineTxn, h, plan)
	if err != nil {
		return nil, err
	}

	if !multiSort {
		return &Cursor{it: it, proj: stmt.Projection}, nil
	}

	// More than one sort key: the planner already applied the residual
	// filter but neither sort nor pagination, so buffer everything, sort by
	// every key, then apply skip/limit in-process.
	var rows []executor.Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	scanErr := it.Err()
	closeErr := it.Close()
	if scanErr != nil {
		return nil, scanErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range stmt.Sort {
			va, aFound := rawbson.FindFieldPath(rows[i].Doc, key.Field)
			vb, bFound := rawbson.FindFieldPath(rows[j].Doc, key.Field)
			less, ok := compareRows(va, aFound, vb, bFound)
			if !ok {
				continue
			}
			if key.Desc {
				return !less
			}
			return less
		}
		return false
	})

	rows = applySkipLimit(rows, stmt.Skip, stmt.Limit)
	return &Cursor{it: &sliceIterator{rows: rows, idx: -1}, proj: stmt.Projection}, nil
}

// compareRows mirrors executor's lessByField missing-field rule: a document
// missing the field sorts before one that has it. ok is false when both
// documents lack the field or their values compare equal (or are
// incomparable): this key does not order them, so the caller moves on to
// the next sort key.
func compareRows(va bsoncore.Value, aFound bool, vb bsoncore.Value, bFound bool) (less bool, ok bool) {
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
	if !ok || cmp == 0 {
		return false, false
	}
	return cmp < 0, true
}

func applySkipLimit(rows []executor.Row, skip, limit int64) []executor.Row {
	if skip > 0 {
		if skip >= int64(len(rows)) {
			return nil
		}
		rows = rows[skip:]
	}
	if limit > 0 && int64(len(rows)) > limit {
		rows = rows[:limit]
	}
	return rows
}

// sliceIterator replays a pre-materialized row set as an executor.Iterator,
// used once a Cursor's ordering work has already happened in-process.
type sliceIterator struct {
	rows []executor.Row
	idx  int
}

func (s *sliceIterator) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}
func (s *sliceIterator) Row() executor.Row { return s.rows[s.idx] }
func (s *sliceIterator) Err() error        { return nil }
func (s *sliceIterator) Close() error      { return nil }

func (t *Txn) execDistinct(h *engine.CollectionHandle, stmt Statement) (*Cursor, error) {
	if stmt.DistinctField == "" {
		return nil, slerrors.InvalidQuery("distinct requires a field")
	}
	plan, _, err := buildPlan(h, Statement{Filter: stmt.Filter}, 0)
	if err != nil {
		return nil, err
	}
	it, err := executor.Open(t.engineTxn, h, plan)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	seen := map[string]struct{}{}
	var vals []bsoncore.Value
	for it.Next() {
		v, found := rawbson.FindFieldPath(it.Row().Doc, stmt.DistinctField)
		if !found {
			continue
		}
		key := string(byte(v.Type)) + string(v.Data)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		vals = append(vals, v)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	if len(stmt.Sort) > 0 {
		desc := stmt.Sort[0].Desc
		sort.SliceStable(vals, func(i, j int) bool {
			cmp, ok := rawbson.Compare(vals[i], vals[j])
			if !ok {
				return false
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	vals = applyValueSkipLimit(vals, stmt.Skip, stmt.Limit)

	return &Cursor{distinctVals: vals, idx: -1, usingBuffer: true}, nil
}

func applyValueSkipLimit(vals []bsoncore.Value, skip, limit int64) []bsoncore.Value {
	if skip > 0 {
		if skip >= int64(len(vals)) {
			return nil
		}
		vals = vals[skip:]
	}
	if limit > 0 && int64(len(vals)) > limit {
		vals = vals[:limit]
	}
	return vals
}
