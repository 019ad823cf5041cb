package mutate

import (
	"encoding/binary"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// fieldLoc locates one top-level element within a document or array byte
// buffer, grounded on original_source's raw_mutation.rs FieldLoc: the byte
// ranges needed to overwrite, splice, or remove the element without
// touching anything else.
type fieldLoc struct {
	elemStart, elemEnd int
	valueStart         int
	typeByte           byte
}

// walkElements scans a document/array byte buffer (both share the same
// [len:4 LE][elements...][0x00] layout) and returns the byte range of every
// top-level element.
func walkElements(data []byte) ([]fieldLoc, bool) {
	if len(data) < 5 {
		return nil, false
	}
	end := len(data) - 1
	pos := 4
	var out []fieldLoc
	for pos < end {
		elem, rem, ok := bsoncore.ReadElement(data[pos:])
		if !ok {
			return nil, false
		}
		elemLen := len(data) - len(rem) - pos
		valueStart := pos + 1 + len(elem.Key()) + 1
		out = append(out, fieldLoc{elemStart: pos, elemEnd: pos + elemLen, valueStart: valueStart, typeByte: byte(elem.Value().Type)})
		pos += elemLen
	}
	return out, true
}

func findField(data []byte, name string) (fieldLoc, bool) {
	locs, ok := walkElements(data)
	if !ok {
		return fieldLoc{}, false
	}
	for _, l := range locs {
		elem := bsoncore.Element(data[l.elemStart:l.elemEnd])
		if elem.Key() == name {
			return l, true
		}
	}
	return fieldLoc{}, false
}

func spliceBytes(buf []byte, start, end int, repl []byte) []byte {
	out := make([]byte, 0, len(buf)-(end-start)+len(repl))
	out = append(out, buf[:start]...)
	out = append(out, repl...)
	out = append(out, buf[end:]...)
	return out
}

// updateDocLength patches the 4-byte little-endian length header shared by
// both BSON documents and arrays.
func updateDocLength(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
}

// scalarEligible reports whether v can be encoded as a single BSON element
// value without recursing (Document and Array values require the fallback
// path per §4.8).
func scalarEligible(v bsoncore.Value) bool {
	switch v.Type {
	case bsontype.Int32, bsontype.Int64, bsontype.Double, bsontype.Boolean,
		bsontype.String, bsontype.DateTime, bsontype.Null, bsontype.ObjectID:
		return true
	default:
		return false
	}
}

func isNumeric(t bsontype.Type) bool {
	return t == bsontype.Int32 || t == bsontype.Int64 || t == bsontype.Double
}

// --- $set ---

func rawSet(buf []byte, field string, v bsoncore.Value) ([]byte, bool) {
	loc, found := findField(buf, field)
	newElem := bsoncore.AppendValueElement(nil, field, v)
	if !found {
		insertPos := len(buf) - 1
		buf = spliceBytes(buf, insertPos, insertPos, newElem)
		updateDocLength(buf)
		return buf, true
	}
	oldVal := buf[loc.valueStart:loc.elemEnd]
	if loc.typeByte == byte(v.Type) && bytesEqual(oldVal, v.Data) {
		return buf, false
	}
	if loc.typeByte == byte(v.Type) && len(oldVal) == len(v.Data) {
		copy(buf[loc.valueStart:loc.elemEnd], v.Data)
		return buf, true
	}
	buf = spliceBytes(buf, loc.elemStart, loc.elemEnd, newElem)
	updateDocLength(buf)
	return buf, true
}

// --- $unset ---

func rawUnset(buf []byte, field string) ([]byte, bool) {
	loc, found := findField(buf, field)
	if !found {
		return buf, false
	}
	buf = spliceBytes(buf, loc.elemStart, loc.elemEnd, nil)
	updateDocLength(buf)
	return buf, true
}

// --- $inc ---

// incCombine applies the numeric-promotion table shared by the fast and
// fallback paths: same-type arithmetic stays put, i32 overflow promotes to
// i64, and any mix with a double promotes to double.
func incCombine(old, amount bsoncore.Value) (bsoncore.Value, error) {
	if !isNumeric(old.Type) || !isNumeric(amount.Type) {
		return bsoncore.Value{}, slerrors.InvalidQuery("$inc: field is not numeric")
	}
	switch old.Type {
	case bsontype.Int32:
		a := int32(binary.LittleEndian.Uint32(old.Data))
		switch amount.Type {
		case bsontype.Int32:
			b := int32(binary.LittleEndian.Uint32(amount.Data))
			sum64 := int64(a) + int64(b)
			if sum64 > math.MaxInt32 || sum64 < math.MinInt32 {
				return i64Value(sum64), nil
			}
			return i32Value(int32(sum64)), nil
		case bsontype.Int64:
			b := int64(binary.LittleEndian.Uint64(amount.Data))
			return i64Value(int64(a) + b), nil
		default: // Double
			b := math.Float64frombits(binary.LittleEndian.Uint64(amount.Data))
			return f64Value(float64(a) + b), nil
		}
	case bsontype.Int64:
		a := int64(binary.LittleEndian.Uint64(old.Data))
		switch amount.Type {
		case bsontype.Int32:
			b := int32(binary.LittleEndian.Uint32(amount.Data))
			return i64Value(a + int64(b)), nil
		case bsontype.Int64:
			b := int64(binary.LittleEndian.Uint64(amount.Data))
			return i64Value(a + b), nil
		default: // Double
			b := math.Float64frombits(binary.LittleEndian.Uint64(amount.Data))
			return f64Value(float64(a) + b), nil
		}
	default: // Double
		a := math.Float64frombits(binary.LittleEndian.Uint64(old.Data))
		switch amount.Type {
		case bsontype.Int32:
			b := int32(binary.LittleEndian.Uint32(amount.Data))
			return f64Value(a + float64(b)), nil
		case bsontype.Int64:
			b := int64(binary.LittleEndian.Uint64(amount.Data))
			return f64Value(a + float64(b)), nil
		default: // Double
			b := math.Float64frombits(binary.LittleEndian.Uint64(amount.Data))
			return f64Value(a + b), nil
		}
	}
}

func i32Value(n int32) bsoncore.Value {
	return bsoncore.Value{Type: bsontype.Int32, Data: bsoncore.AppendInt32(nil, n)}
}
func i64Value(n int64) bsoncore.Value {
	return bsoncore.Value{Type: bsontype.Int64, Data: bsoncore.AppendInt64(nil, n)}
}
func f64Value(f float64) bsoncore.Value {
	return bsoncore.Value{Type: bsontype.Double, Data: bsoncore.AppendDouble(nil, f)}
}

func rawInc(buf []byte, field string, amount bsoncore.Value) ([]byte, bool, error) {
	if !isNumeric(amount.Type) {
		return buf, false, slerrors.InvalidQuery("$inc: amount is not numeric")
	}
	loc, found := findField(buf, field)
	if !found {
		newElem := bsoncore.AppendValueElement(nil, field, amount)
		insertPos := len(buf) - 1
		buf = spliceBytes(buf, insertPos, insertPos, newElem)
		updateDocLength(buf)
		return buf, true, nil
	}
	oldVal := bsoncore.Value{Type: bsontype.Type(loc.typeByte), Data: append([]byte(nil), buf[loc.valueStart:loc.elemEnd]...)}
	if !isNumeric(oldVal.Type) {
		return buf, false, slerrors.InvalidQuery("$inc: field '" + field + "' is not numeric")
	}
	sum, err := incCombine(oldVal, amount)
	if err != nil {
		return buf, false, err
	}
	if len(sum.Data) == len(oldVal.Data) {
		if sum.Type != oldVal.Type {
			buf[loc.elemStart] = byte(sum.Type)
		}
		copy(buf[loc.valueStart:loc.elemEnd], sum.Data)
		return buf, true, nil
	}
	newElem := bsoncore.AppendValueElement(nil, field, sum)
	buf = spliceBytes(buf, loc.elemStart, loc.elemEnd, newElem)
	updateDocLength(buf)
	return buf, true, nil
}

// --- $push (append only; $lpush always falls back — see eligibility) ---

func rawPush(buf []byte, field string, v bsoncore.Value) ([]byte, bool, error) {
	loc, found := findField(buf, field)
	if !found {
		aidx, abuf := bsoncore.AppendArrayStart(nil)
		abuf = bsoncore.AppendValueElement(abuf, "0", v)
		abuf, _ = bsoncore.AppendArrayEnd(abuf, aidx)
		newElem := bsoncore.AppendValueElement(nil, field, bsoncore.Value{Type: bsontype.Array, Data: abuf})
		insertPos := len(buf) - 1
		buf = spliceBytes(buf, insertPos, insertPos, newElem)
		updateDocLength(buf)
		return buf, true, nil
	}
	if bsontype.Type(loc.typeByte) != bsontype.Array {
		return buf, false, slerrors.InvalidQuery("$push: field '" + field + "' is not an array")
	}
	arrData := append([]byte(nil), buf[loc.valueStart:loc.elemEnd]...)
	count, ok := countElements(arrData)
	if !ok {
		return buf, false, slerrors.InvalidQuery("$push: field '" + field + "' has a malformed array")
	}
	newArrElem := bsoncore.AppendValueElement(nil, strconv.Itoa(count), v)
	insertPos := len(arrData) - 1
	arrData = spliceBytes(arrData, insertPos, insertPos, newArrElem)
	updateDocLength(arrData)

	newElem := bsoncore.AppendValueElement(nil, field, bsoncore.Value{Type: bsontype.Array, Data: arrData})
	buf = spliceBytes(buf, loc.elemStart, loc.elemEnd, newElem)
	updateDocLength(buf)
	return buf, true, nil
}

// --- $pop ---

func rawPop(buf []byte, field string) ([]byte, bool, error) {
	loc, found := findField(buf, field)
	if !found {
		return buf, false, nil
	}
	if bsontype.Type(loc.typeByte) != bsontype.Array {
		return buf, false, slerrors.InvalidQuery("$pop: field '" + field + "' is not an array")
	}
	arrData := append([]byte(nil), buf[loc.valueStart:loc.elemEnd]...)
	locs, ok := walkElements(arrData)
	if !ok || len(locs) == 0 {
		return buf, false, nil
	}
	last := locs[len(locs)-1]
	arrData = spliceBytes(arrData, last.elemStart, last.elemEnd, nil)
	updateDocLength(arrData)

	newElem := bsoncore.AppendValueElement(nil, field, bsoncore.Value{Type: bsontype.Array, Data: arrData})
	buf = spliceBytes(buf, loc.elemStart, loc.elemEnd, newElem)
	updateDocLength(buf)
	return buf, true, nil
}

func countElements(data []byte) (int, bool) {
	locs, ok := walkElements(data)
	if !ok {
		return 0, false
	}
	return len(locs), true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
