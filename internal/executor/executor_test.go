package executor

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/filter"
	"github.com/kartikbazzad/slate/internal/planner"
	"github.com/kartikbazzad/slate/kv/memkv"
)

func mustDoc(t *testing.T, elems ...[]byte) bsoncore.Document {
	t.Helper()
	idx, buf := bsoncore.AppendDocumentStart(nil)
	for _, e := range elems {
		buf = append(buf, e...)
	}
	buf, err := bsoncore.AppendDocumentEnd(buf, idx)
	if err != nil {
		t.Fatal(err)
	}
	return bsoncore.Document(buf)
}

func strElem(key, value string) []byte { return bsoncore.AppendStringElement(nil, key, value) }
func i32Elem(key string, value int32) []byte {
	return bsoncore.AppendInt32Element(nil, key, value)
}

type fixture struct {
	txn *engine.Txn
	h   *engine.CollectionHandle
}

func newFixture(t *testing.T, indexes ...string) *fixture {
	t.Helper()
	e, err := engine.Open(memkv.New(), func() int64 { return 1000 })
	if err != nil {
		t.Fatal(err)
	}
	txn, err := e.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.CreateCollection("widgets"); err != nil {
		t.Fatal(err)
	}
	for _, f := range indexes {
		if err := txn.CreateIndex("widgets", f); err != nil {
			t.Fatal(err)
		}
	}
	h, err := txn.Collection("widgets")
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{txn: txn, h: h}
}

func drain(t *testing.T, it Iterator) []Row {
	t.Helper()
	var rows []Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	return rows
}

func idsOf(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID.String()
	}
	return out
}

func TestExecutorFullScanYieldsEveryLiveDoc(t *testing.T) {
	f := newFixture(t)
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a")))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "b")))

	plan := planner.Build(f.h, nil, planner.Options{})
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
}

func TestExecutorIndexScanThenKeyLookupFiltersToMatching(t *testing.T) {
	f := newFixture(t, "sku")
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a"), strElem("sku", "X")))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "b"), strElem("sku", "Y")))

	plan := &planner.Plan{Root: &planner.Node{
		Kind: planner.KindKeyLookup,
		Child: &planner.Node{
			Kind:  planner.KindIndexScan,
			Field: "sku",
			Range: engine.IndexRange{Kind: engine.RangeEq, EqValue: []byte("X")},
		},
	}}
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	if len(rows) != 1 || rows[0].ID.String() != "a" {
		t.Fatalf("got %v", idsOf(rows))
	}
}

func TestExecutorIndexMergeDedupsAcrossBranches(t *testing.T) {
	f := newFixture(t, "sku", "color")
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a"), strElem("sku", "X"), strElem("color", "red")))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "b"), strElem("sku", "Y"), strElem("color", "red")))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "c"), strElem("sku", "Z"), strElem("color", "blue")))

	plan := &planner.Plan{Root: &planner.Node{
		Kind: planner.KindKeyLookup,
		Child: &planner.Node{
			Kind: planner.KindIndexMerge,
			Children: []*planner.Node{
				{Kind: planner.KindIndexScan, Field: "sku", Range: engine.IndexRange{Kind: engine.RangeEq, EqValue: []byte("X")}},
				{Kind: planner.KindIndexScan, Field: "color", Range: engine.IndexRange{Kind: engine.RangeEq, EqValue: []byte("red")}},
			},
		},
	}}
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	if len(rows) != 2 {
		t.Fatalf("expected a (matched by both branches, deduplicated) and b (color only), got %v", idsOf(rows))
	}
}

func TestExecutorFilterSkipsNonMatchingRows(t *testing.T) {
	f := newFixture(t)
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a"), i32Elem("qty", 1)))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "b"), i32Elem("qty", 9)))

	expr, err := filter.Parse(mustDoc(t, bsoncore.AppendDocumentElement(nil, "qty",
		mustDoc(t, i32Elem("$gte", 5)))))
	if err != nil {
		t.Fatal(err)
	}
	plan := planner.Build(f.h, expr, planner.Options{})
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	if len(rows) != 1 || rows[0].ID.String() != "b" {
		t.Fatalf("got %v", idsOf(rows))
	}
}

func TestExecutorSortOrdersByFieldAscending(t *testing.T) {
	f := newFixture(t)
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a"), i32Elem("qty", 9)))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "b"), i32Elem("qty", 1)))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "c"), i32Elem("qty", 5)))

	plan := planner.Build(f.h, nil, planner.Options{SortField: "qty"})
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	got := idsOf(rows)
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestExecutorLimitSkipsThenTakes(t *testing.T) {
	f := newFixture(t)
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a")))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "b")))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "c")))
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "d")))

	plan := planner.Build(f.h, nil, planner.Options{SortField: "_id", Skip: 1, Limit: 2})
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	if len(rows) != 2 {
		t.Fatalf("got %d rows: %v", len(rows), idsOf(rows))
	}
}

func TestExecutorLimitSkipBeyondSourceYieldsNothing(t *testing.T) {
	f := newFixture(t)
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a")))

	plan := planner.Build(f.h, nil, planner.Options{Skip: 5})
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	if len(rows) != 0 {
		t.Fatalf("got %v", idsOf(rows))
	}
}

func TestExecutorKeyLookupSkipsDeletedSinceIndexed(t *testing.T) {
	f := newFixture(t, "sku")
	f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "a"), strElem("sku", "X")))
	id, _ := f.txn.PutNX(f.h, mustDoc(t, strElem("_id", "b"), strElem("sku", "X")))
	f.txn.Delete(f.h, id)

	plan := &planner.Plan{Root: &planner.Node{
		Kind: planner.KindKeyLookup,
		Child: &planner.Node{
			Kind:  planner.KindIndexScan,
			Field: "sku",
			Range: engine.IndexRange{Kind: engine.RangeEq, EqValue: []byte("X")},
		},
	}}
	it, err := Open(f.txn, f.h, plan)
	if err != nil {
		t.Fatal(err)
	}
	rows := drain(t, it)
	if len(rows) != 1 || rows[0].ID.String() != "a" {
		t.Fatalf("got %v", idsOf(rows))
	}
}
