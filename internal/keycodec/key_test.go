package keycodec

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func strID(s string) Value {
	return Value{Tag: bsontype.String, Bytes: []byte(s)}
}

func oidID(b [12]byte) Value {
	return Value{Tag: bsontype.ObjectID, Bytes: append([]byte(nil), b[:]...)}
}

func TestCollectionKeyRoundtrip(t *testing.T) {
	key := EncodeCollectionKey("users")
	if string(key) != "c\x00users" {
		t.Fatalf("unexpected encoding: %q", key)
	}
	decoded, ok := DecodeKey(key)
	if !ok || decoded.Kind != KindCollection || decoded.Collection != "users" {
		t.Fatalf("decode mismatch: %+v", decoded)
	}
}

func TestRecordKeyStringIDRoundtrip(t *testing.T) {
	key := EncodeRecordKey("users", strID("doc-123"))
	decoded, ok := DecodeKey(key)
	if !ok || decoded.Kind != KindRecord || decoded.Collection != "users" || !decoded.DocID.Equal(strID("doc-123")) {
		t.Fatalf("decode mismatch: %+v", decoded)
	}
}

func TestRecordKeyObjectIDRoundtrip(t *testing.T) {
	oid := [12]byte{0x50, 0x7f, 0x1f, 0x77, 0xbc, 0xf8, 0x6c, 0xd7, 0x99, 0x43, 0x90, 0x11}
	key := EncodeRecordKey("users", oidID(oid))
	decoded, ok := DecodeKey(key)
	if !ok || !decoded.DocID.Equal(oidID(oid)) {
		t.Fatalf("decode mismatch: %+v", decoded)
	}
}

func TestIndexKeyRoundtrip(t *testing.T) {
	valueBytes := []byte("alice@example.com")
	key := EncodeIndexKey("users", "email", valueBytes, strID("doc-123"))
	decoded, ok := DecodeKey(key)
	if !ok || decoded.Kind != KindIndex || decoded.Field != "email" || !decoded.DocID.Equal(strID("doc-123")) {
		t.Fatalf("decode mismatch: %+v", decoded)
	}
}

func TestIndexKeyWithBinaryValue(t *testing.T) {
	valueBytes := []byte{0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2A}
	key := EncodeIndexKey("scores", "rank", valueBytes, strID("rec-1"))
	decoded, ok := DecodeKey(key)
	if !ok || decoded.Field != "rank" {
		t.Fatalf("decode mismatch: %+v", decoded)
	}
}

func TestIndexKeyObjectIDWithNullBytes(t *testing.T) {
	oid := [12]byte{0x00, 0x00, 0x1f, 0x77, 0xbc, 0xf8, 0x6c, 0xd7, 0x99, 0x43, 0x90, 0x00}
	key := EncodeIndexKey("users", "email", []byte("test@example.com"), oidID(oid))
	decoded, ok := DecodeKey(key)
	if !ok || !decoded.DocID.Equal(oidID(oid)) {
		t.Fatalf("decode mismatch with embedded null bytes: %+v", decoded)
	}
}

func TestIndexMapKeyRoundtrip(t *testing.T) {
	key := EncodeIndexMapKey("users", "email", strID("doc-123"), []byte("alice@example.com"))
	decoded, ok := DecodeKey(key)
	if !ok || decoded.Kind != KindIndexMap || !decoded.DocID.Equal(strID("doc-123")) {
		t.Fatalf("decode mismatch: %+v", decoded)
	}
}

func TestParseIndexTailWithTypedID(t *testing.T) {
	valueBytes := []byte{0x80, 0x00, 0x00, 0x19}
	key := EncodeIndexKey("users", "age", valueBytes, strID("doc-1"))
	prefix := PrefixIndexField("users", "age")
	gotValue, gotID, ok := ParseIndexTail(key, len(prefix))
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if string(gotValue) != string(valueBytes) {
		t.Fatalf("value mismatch: %x vs %x", gotValue, valueBytes)
	}
	if !gotID.Equal(strID("doc-1")) {
		t.Fatalf("id mismatch: %+v", gotID)
	}
}

func TestDecodeInvalidTag(t *testing.T) {
	if _, ok := DecodeKey([]byte("z\x00stuff")); ok {
		t.Fatal("expected decode failure for unknown tag")
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, ok := DecodeKey([]byte("r")); ok {
		t.Fatal("expected decode failure for short input")
	}
	if _, ok := DecodeKey(nil); ok {
		t.Fatal("expected decode failure for empty input")
	}
}

func TestSortableEncodingPreservesOrder(t *testing.T) {
	neg := EncodeI32Sortable(-10)
	zero := EncodeI32Sortable(0)
	pos := EncodeI32Sortable(42)
	if !(lessBytes(neg[:], zero[:]) && lessBytes(zero[:], pos[:])) {
		t.Fatal("i32 sortable order broken")
	}

	a := EncodeI64Sortable(100)
	b := EncodeI64Sortable(200)
	if !lessBytes(a[:], b[:]) {
		t.Fatal("i64 sortable order broken")
	}

	d1 := EncodeF64Sortable(-1.5)
	d2 := EncodeF64Sortable(0.0)
	d3 := EncodeF64Sortable(2.78)
	if !(lessBytes(d1[:], d2[:]) && lessBytes(d2[:], d3[:])) {
		t.Fatal("f64 sortable order broken")
	}
}

func TestSortableDecodeRoundtrip(t *testing.T) {
	for _, n := range []int32{42, -42, 0, -2147483648, 2147483647} {
		enc := EncodeI32Sortable(n)
		if DecodeI32Sortable(enc[:]) != n {
			t.Fatalf("i32 roundtrip failed for %d", n)
		}
	}
	for _, n := range []int64{1_000_000, -1_000_000, 0} {
		enc := EncodeI64Sortable(n)
		if DecodeI64Sortable(enc[:]) != n {
			t.Fatalf("i64 roundtrip failed for %d", n)
		}
	}
	for _, f := range []float64{2.78, -2.78, 0.0} {
		enc := EncodeF64Sortable(f)
		if DecodeF64Sortable(enc[:]) != f {
			t.Fatalf("f64 roundtrip failed for %v", f)
		}
	}
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
