package filter

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/kartikbazzad/slate/internal/rawbson"
)

// Matches evaluates expr against doc.
func Matches(doc bsoncore.Document, expr *Expr) bool {
	if expr == nil {
		return true
	}
	switch expr.Kind {
	case KindAnd:
		for _, c := range expr.Children {
			if !Matches(doc, c) {
				return false
			}
		}
		return true
	case KindOr:
		if len(expr.Children) == 0 {
			return true
		}
		for _, c := range expr.Children {
			if Matches(doc, c) {
				return true
			}
		}
		return false
	case KindExists:
		_, found := rawbson.FindFieldPath(doc, expr.Field)
		return found == expr.ExistsWant
	case KindEq:
		val, found := rawbson.FindFieldPath(doc, expr.Field)
		if expr.Value.Type == bsontype.Null {
			// $eq: null matches missing-or-null.
			return !found || val.Type == bsontype.Null
		}
		if !found {
			return false
		}
		return rawbson.Equal(val, expr.Value)
	case KindGt, KindGte, KindLt, KindLte:
		val, found := rawbson.FindFieldPath(doc, expr.Field)
		if !found {
			return false
		}
		cmp, ok := rawbson.Compare(val, expr.Value)
		if !ok {
			return false
		}
		switch expr.Kind {
		case KindGt:
			return cmp > 0
		case KindGte:
			return cmp >= 0
		case KindLt:
			return cmp < 0
		case KindLte:
			return cmp <= 0
		}
		return false
	case KindRegex:
		val, found := rawbson.FindFieldPath(doc, expr.Field)
		if !found || val.Type != bsontype.String {
			return false
		}
		s, ok := val.StringValueOK()
		if !ok {
			return false
		}
		return expr.Regex.MatchString(s)
	default:
		return false
	}
}
