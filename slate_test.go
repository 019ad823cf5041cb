package slate

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

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

func newTestDB(t *testing.T, now int64) *Database {
	t.Helper()
	db, err := Open(memkv.New(), Options{Clock: func() int64 { return now }})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestTxn(t *testing.T, db *Database) *Txn {
	t.Helper()
	txn, err := db.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.CreateCollection("users"); err != nil {
		t.Fatal(err)
	}
	return txn
}

func docVal(t *testing.T, v bsoncore.Value) string {
	t.Helper()
	s, ok := v.StringValueOK()
	if !ok {
		t.Fatalf("not a string value: %v", v)
	}
	return s
}

func TestInsertThenFindRoundTrips(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)

	alice := mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"), i32Elem("age", 30))
	bob := mustDoc(t, strElem("_id", "u2"), strElem("name", "Bob"), i32Elem("age", 25))
	if _, err := txn.Execute(Insert("users", alice, bob)); err != nil {
		t.Fatal(err)
	}

	cur, err := txn.Execute(Find("users").Where(mustDoc(t, strElem("_id", "u1"))))
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Close()
	if !cur.Next() {
		t.Fatal("expected a row")
	}
	name, _ := cur.Doc().LookupErr("name")
	if name.StringValue() != "Alice" {
		t.Fatalf("got %v", name)
	}
	if cur.Next() {
		t.Fatal("expected exactly one row")
	}
}

func TestInsertGeneratesIDWhenMissing(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)

	doc := mustDoc(t, strElem("name", "Carol"))
	cur, err := txn.Execute(Insert("users", doc))
	if err != nil {
		t.Fatal(err)
	}
	result, err := cur.Execute()
	if err != nil {
		t.Fatal(err)
	}
	if len(result.InsertedIDs) != 1 {
		t.Fatalf("got %v", result.InsertedIDs)
	}
}

func TestUpdateAppliesIncOperator(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users", mustDoc(t, strElem("_id", "u1"), i32Elem("age", 30))))

	mutation := mustDoc(t, bsoncore.AppendDocumentElement(nil, "$inc", mustDoc(t, i32Elem("age", 1))))
	cur, err := txn.Execute(Update("users", mutation).Where(mustDoc(t, strElem("_id", "u1"))))
	if err != nil {
		t.Fatal(err)
	}
	result, err := cur.Execute()
	if err != nil {
		t.Fatal(err)
	}
	if result.Matched != 1 || result.Modified != 1 {
		t.Fatalf("got %+v", result)
	}

	findCur, _ := txn.Execute(Find("users").Where(mustDoc(t, strElem("_id", "u1"))))
	findCur.Next()
	age, _ := findCur.Doc().LookupErr("age")
	if age.Int32() != 31 {
		t.Fatalf("got %v", age)
	}
}

func TestUpdateOnlyRestrictsToOneMatch(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users",
		mustDoc(t, strElem("_id", "u1"), strElem("team", "a")),
		mustDoc(t, strElem("_id", "u2"), strElem("team", "a")),
	))

	mutation := mustDoc(t, bsoncore.AppendDocumentElement(nil, "$set", mustDoc(t, strElem("team", "b"))))
	cur, err := txn.Execute(Update("users", mutation).Where(mustDoc(t, strElem("team", "a"))).Only())
	if err != nil {
		t.Fatal(err)
	}
	result, _ := cur.Execute()
	if result.Matched != 1 || result.Modified != 1 {
		t.Fatalf("got %+v", result)
	}
}

func TestReplacePreservesID(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users", mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"))))

	replacement := mustDoc(t, strElem("name", "Alicia"))
	cur, err := txn.Execute(Replace("users", replacement).Where(mustDoc(t, strElem("_id", "u1"))))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cur.Execute(); err != nil {
		t.Fatal(err)
	}

	findCur, _ := txn.Execute(Find("users").Where(mustDoc(t, strElem("_id", "u1"))))
	findCur.Next()
	id, _ := findCur.Doc().LookupErr("_id")
	if id.StringValue() != "u1" {
		t.Fatalf("expected _id preserved, got %v", id)
	}
	name, _ := findCur.Doc().LookupErr("name")
	if name.StringValue() != "Alicia" {
		t.Fatalf("got %v", name)
	}
}

func TestDeleteRemovesMatchingDocs(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users",
		mustDoc(t, strElem("_id", "u1"), strElem("team", "a")),
		mustDoc(t, strElem("_id", "u2"), strElem("team", "b")),
	))

	cur, err := txn.Execute(Delete("users").Where(mustDoc(t, strElem("team", "a"))))
	if err != nil {
		t.Fatal(err)
	}
	result, _ := cur.Execute()
	if result.Deleted != 1 {
		t.Fatalf("got %+v", result)
	}

	findCur, _ := txn.Execute(Find("users"))
	var remaining []string
	for findCur.Next() {
		id, _ := findCur.Doc().LookupErr("_id")
		remaining = append(remaining, id.StringValue())
	}
	if len(remaining) != 1 || remaining[0] != "u2" {
		t.Fatalf("got %v", remaining)
	}
}

func TestUpsertInsertsWhenAbsent(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)

	doc := mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"))
	cur, err := txn.Execute(Upsert("users", doc))
	if err != nil {
		t.Fatal(err)
	}
	result, _ := cur.Execute()
	if result.Upserted != 1 || result.Modified != 0 {
		t.Fatalf("got %+v", result)
	}
}

func TestUpsertReplacesWhenPresent(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users", mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"))))

	doc := mustDoc(t, strElem("_id", "u1"), strElem("name", "Alicia"))
	cur, err := txn.Execute(Upsert("users", doc))
	if err != nil {
		t.Fatal(err)
	}
	result, _ := cur.Execute()
	if result.Upserted != 0 || result.Modified != 1 {
		t.Fatalf("got %+v", result)
	}
}

func TestUpsertNoopWhenBodyMatchesExisting(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	existing := mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"))
	txn.Execute(Insert("users", existing))

	cur, err := txn.Execute(Upsert("users", existing))
	if err != nil {
		t.Fatal(err)
	}
	result, _ := cur.Execute()
	if result.Matched != 1 || result.Modified != 0 {
		t.Fatalf("got %+v", result)
	}
}

func TestMergeInsertsSeedWhenAbsent(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)

	patch := mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"))
	cur, err := txn.Execute(Merge("users", patch))
	if err != nil {
		t.Fatal(err)
	}
	result, _ := cur.Execute()
	if result.Upserted != 1 {
		t.Fatalf("got %+v", result)
	}

	findCur, _ := txn.Execute(Find("users").Where(mustDoc(t, strElem("_id", "u1"))))
	findCur.Next()
	name, _ := findCur.Doc().LookupErr("name")
	if name.StringValue() != "Alice" {
		t.Fatalf("got %v", name)
	}
}

func TestMergePatchesExistingFieldsOnly(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users", mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"), i32Elem("age", 30))))

	patch := mustDoc(t, strElem("_id", "u1"), i32Elem("age", 31))
	cur, err := txn.Execute(Merge("users", patch))
	if err != nil {
		t.Fatal(err)
	}
	result, _ := cur.Execute()
	if result.Modified != 1 {
		t.Fatalf("got %+v", result)
	}

	findCur, _ := txn.Execute(Find("users").Where(mustDoc(t, strElem("_id", "u1"))))
	findCur.Next()
	name, _ := findCur.Doc().LookupErr("name")
	age, _ := findCur.Doc().LookupErr("age")
	if name.StringValue() != "Alice" || age.Int32() != 31 {
		t.Fatalf("got name=%v age=%v", name, age)
	}
}

func TestDistinctDeduplicatesValues(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users",
		mustDoc(t, strElem("_id", "u1"), strElem("team", "a")),
		mustDoc(t, strElem("_id", "u2"), strElem("team", "a")),
		mustDoc(t, strElem("_id", "u3"), strElem("team", "b")),
	))

	cur, err := txn.Execute(Distinct("users", "team"))
	if err != nil {
		t.Fatal(err)
	}
	var teams []string
	for cur.Next() {
		teams = append(teams, docVal(t, cur.DistinctValue()))
	}
	if len(teams) != 2 {
		t.Fatalf("got %v", teams)
	}
}

func TestFindWithMultiKeySortOrdersByEachKeyInTurn(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users",
		mustDoc(t, strElem("_id", "u1"), strElem("team", "b"), i32Elem("age", 20)),
		mustDoc(t, strElem("_id", "u2"), strElem("team", "a"), i32Elem("age", 30)),
		mustDoc(t, strElem("_id", "u3"), strElem("team", "a"), i32Elem("age", 20)),
	))

	cur, err := txn.Execute(Find("users").SortBy(SortKey{Field: "team"}, SortKey{Field: "age"}))
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for cur.Next() {
		id, _ := cur.Doc().LookupErr("_id")
		ids = append(ids, id.StringValue())
	}
	want := []string{"u3", "u2", "u1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v want %v", ids, want)
		}
	}
}

func TestFindProjectionKeepsOnlySelectedFieldsPlusID(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users", mustDoc(t, strElem("_id", "u1"), strElem("name", "Alice"), i32Elem("age", 30))))

	cur, err := txn.Execute(Find("users").Where(mustDoc(t, strElem("_id", "u1"))).Select("name"))
	if err != nil {
		t.Fatal(err)
	}
	cur.Next()
	doc := cur.Doc()
	if _, err := doc.LookupErr("name"); err != nil {
		t.Fatal("expected name to survive projection")
	}
	if _, err := doc.LookupErr("_id"); err != nil {
		t.Fatal("expected _id to always survive projection")
	}
	if _, err := doc.LookupErr("age"); err == nil {
		t.Fatal("expected age to be dropped by projection")
	}
}

func TestFindSkipAndLimitPaginate(t *testing.T) {
	db := newTestDB(t, 1000)
	txn := newTestTxn(t, db)
	txn.Execute(Insert("users",
		mustDoc(t, strElem("_id", "u1"), i32Elem("rank", 1)),
		mustDoc(t, strElem("_id", "u2"), i32Elem("rank", 2)),
		mustDoc(t, strElem("_id", "u3"), i32Elem("rank", 3)),
		mustDoc(t, strElem("_id", "u4"), i32Elem("rank", 4)),
	))

	cur, err := txn.Execute(Find("users").SortBy(SortKey{Field: "rank"}).WithSkip(1).WithLimit(2))
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for cur.Next() {
		id, _ := cur.Doc().LookupErr("_id")
		ids = append(ids, id.StringValue())
	}
	want := []string{"u2", "u3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v want %v", ids, want)
		}
	}
}

func TestExpiredDocumentReadsAsAbsent(t *testing.T) {
	db := newTestDB(t, 2000)
	txn := newTestTxn(t, db)
	expired := mustDoc(t, strElem("_id", "u1"), bsoncore.AppendDateTimeElement(nil, "ttl", 1000))
	txn.Execute(Insert("users", expired))

	cur, err := txn.Execute(Find("users").Where(mustDoc(t, strElem("_id", "u1"))))
	if err != nil {
		t.Fatal(err)
	}
	if cur.Next() {
		t.Fatal("expected expired document to read as absent")
	}
}
