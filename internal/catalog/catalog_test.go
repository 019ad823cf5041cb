package catalog

import (
	"testing"

	"github.com/kartikbazzad/slate/kv/memkv"
)

func TestCreateAndListCollections(t *testing.T) {
	s := memkv.New()
	if err := s.CreateCF("_sys_"); err != nil {
		t.Fatal(err)
	}
	txn, err := s.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	sysCF, err := txn.CF("_sys_")
	if err != nil {
		t.Fatal(err)
	}
	if err := CreateCollection(txn, sysCF, "widgets"); err != nil {
		t.Fatal(err)
	}
	if err := CreateCollection(txn, sysCF, "gadgets"); err != nil {
		t.Fatal(err)
	}
	// idempotent
	if err := CreateCollection(txn, sysCF, "widgets"); err != nil {
		t.Fatal(err)
	}
	names, err := ListCollections(txn, sysCF)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("got %v", names)
	}
	exists, err := CollectionExists(txn, sysCF, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("expected widgets to exist")
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestIndexLifecycle(t *testing.T) {
	s := memkv.New()
	s.CreateCF("_sys_")
	txn, _ := s.Begin(false)
	sysCF, _ := txn.CF("_sys_")
	if err := CreateCollection(txn, sysCF, "widgets"); err != nil {
		t.Fatal(err)
	}
	if err := CreateIndexMeta(txn, sysCF, "widgets", "sku"); err != nil {
		t.Fatal(err)
	}
	if err := CreateIndexMeta(txn, sysCF, "widgets", "ttl"); err != nil {
		t.Fatal(err)
	}
	fields, err := ListIndexes(txn, sysCF, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %v", fields)
	}
	if err := DropIndexMeta(txn, sysCF, "widgets", "sku"); err != nil {
		t.Fatal(err)
	}
	fields, err = ListIndexes(txn, sysCF, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 1 || fields[0] != "ttl" {
		t.Fatalf("got %v", fields)
	}
}

func TestDropCollectionRemovesIndexConfig(t *testing.T) {
	s := memkv.New()
	s.CreateCF("_sys_")
	txn, _ := s.Begin(false)
	sysCF, _ := txn.CF("_sys_")
	if err := CreateCollection(txn, sysCF, "widgets"); err != nil {
		t.Fatal(err)
	}
	if err := CreateIndexMeta(txn, sysCF, "widgets", "sku"); err != nil {
		t.Fatal(err)
	}
	if err := DropCollectionMeta(txn, sysCF, "widgets"); err != nil {
		t.Fatal(err)
	}
	exists, err := CollectionExists(txn, sysCF, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected widgets to be gone")
	}
	fields, err := ListIndexes(txn, sysCF, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 0 {
		t.Fatalf("expected no index config left, got %v", fields)
	}
	if _, err := txn.CF("widgets"); err == nil {
		t.Fatal("expected widgets column family to be dropped")
	}
}
