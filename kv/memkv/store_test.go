package memkv

import "testing"

func TestPutGetRoundtrip(t *testing.T) {
	s := New()
	if err := s.CreateCF("widgets"); err != nil {
		t.Fatal(err)
	}
	txn, err := s.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	cf, err := txn.CF("widgets")
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Put(cf, []byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	got, err := txn.Get(cf, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "1" {
		t.Fatalf("got %q", got)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	if err := s.CreateCF("widgets"); err != nil {
		t.Fatal(err)
	}

	readTxn, err := s.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	readCF, _ := readTxn.CF("widgets")

	writeTxn, err := s.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	writeCF, _ := writeTxn.CF("widgets")
	if err := writeTxn.Put(writeCF, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := writeTxn.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := readTxn.Get(readCF, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("read-only snapshot observed a write committed after its begin: %q", got)
	}
}

func TestScanPrefixOrdering(t *testing.T) {
	s := New()
	s.CreateCF("c")
	txn, _ := s.Begin(false)
	cf, _ := txn.CF("c")
	for _, k := range []string{"p/3", "p/1", "p/2", "q/1"} {
		txn.Put(cf, []byte(k), []byte("v"))
	}
	it, err := txn.ScanPrefix(cf, []byte("p/"))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	want := []string{"p/1", "p/2", "p/3"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
