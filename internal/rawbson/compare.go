package rawbson

import (
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Compare orders a field's actual value against a filter literal, applying
// the coercions named in §4.2: string→numeric, string→date (RFC 3339), and
// integer-as-epoch-seconds→date. Returns ok=false when the two values belong
// to incompatible families — callers must treat that as "does not match",
// never as an error.
func Compare(field, literal bsoncore.Value) (int, bool) {
	if fn, fok := asNumeric(field); fok {
		if ln, lok := asNumeric(literal); lok {
			return compareFloat(fn, ln), true
		}
	}
	if fd, fok := asMillis(field); fok {
		if ld, lok := asMillis(literal); lok {
			return compareInt64(fd, ld), true
		}
	}
	if fs, fok := asString(field); fok {
		if ls, lok := asString(literal); lok {
			return compareBytes([]byte(fs), []byte(ls)), true
		}
	}
	if fb, fok := asBool(field); fok {
		if lb, lok := asBool(literal); lok {
			return compareBool(fb, lb), true
		}
	}
	return 0, false
}

// Equal reports value equality under the same coercion rules as Compare.
func Equal(field, literal bsoncore.Value) bool {
	if field.Type == bsontype.Null && literal.Type == bsontype.Null {
		return true
	}
	cmp, ok := Compare(field, literal)
	return ok && cmp == 0
}

func asNumeric(v bsoncore.Value) (float64, bool) {
	switch v.Type {
	case bsontype.Int32:
		n, ok := v.Int32OK()
		return float64(n), ok
	case bsontype.Int64:
		n, ok := v.Int64OK()
		return float64(n), ok
	case bsontype.Double:
		n, ok := v.DoubleOK()
		return n, ok
	case bsontype.String:
		s, ok := v.StringValueOK()
		if !ok {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asMillis(v bsoncore.Value) (int64, bool) {
	switch v.Type {
	case bsontype.DateTime:
		ms, ok := v.DateTimeOK()
		return ms, ok
	case bsontype.Int32:
		n, ok := v.Int32OK()
		return int64(n) * 1000, ok
	case bsontype.Int64:
		n, ok := v.Int64OK()
		return n * 1000, ok
	case bsontype.String:
		s, ok := v.StringValueOK()
		if !ok {
			return 0, false
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

func asString(v bsoncore.Value) (string, bool) {
	if v.Type != bsontype.String {
		return "", false
	}
	return v.StringValueOK()
}

func asBool(v bsoncore.Value) (bool, bool) {
	if v.Type != bsontype.Boolean {
		return false, false
	}
	return v.BooleanOK()
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

