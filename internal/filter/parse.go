package filter

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// Parse translates a filter document into an expression tree per §4.7.
func Parse(doc bsoncore.Document) (*Expr, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, slerrors.InvalidQuery("malformed filter document")
	}
	if len(elems) == 0 {
		return nil, slerrors.InvalidQuery("empty filter document")
	}

	var children []*Expr
	for _, elem := range elems {
		key := elem.Key()
		val := elem.Value()
		switch key {
		case "$and", "$or":
			kind := KindAnd
			if key == "$or" {
				kind = KindOr
			}
			arr, ok := val.ArrayOK()
			if !ok {
				return nil, slerrors.InvalidQuery(key + " requires an array of sub-documents")
			}
			vals, err := arr.Values()
			if err != nil {
				return nil, slerrors.InvalidQuery(key + " has a malformed array")
			}
			if len(vals) == 0 {
				return nil, slerrors.InvalidQuery(key + " array must not be empty")
			}
			var subChildren []*Expr
			for _, v := range vals {
				sub, ok := v.DocumentOK()
				if !ok {
					return nil, slerrors.InvalidQuery(key + " elements must be documents")
				}
				subExpr, err := Parse(sub)
				if err != nil {
					return nil, err
				}
				subChildren = append(subChildren, subExpr)
			}
			children = append(children, &Expr{Kind: kind, Children: subChildren})
		default:
			fieldExpr, err := parseFieldCondition(key, val)
			if err != nil {
				return nil, err
			}
			children = append(children, fieldExpr)
		}
	}

	if len(children) == 1 {
		return children[0], nil
	}
	return &Expr{Kind: KindAnd, Children: children}, nil
}

// parseFieldCondition handles one `field: value` or `field: {$op: value, ...}`
// pair. A document value whose first key is an operator starting with `$` is
// treated as an operator sub-document; otherwise the value is an implicit
// equality literal.
func parseFieldCondition(field string, val bsoncore.Value) (*Expr, error) {
	if sub, ok := val.DocumentOK(); ok {
		elems, err := sub.Elements()
		if err == nil && len(elems) > 0 && strings.HasPrefix(elems[0].Key(), "$") {
			return parseOperatorDoc(field, sub)
		}
	}
	return &Expr{Kind: KindEq, Field: field, Value: copyValue(val)}, nil
}

func parseOperatorDoc(field string, sub bsoncore.Document) (*Expr, error) {
	elems, err := sub.Elements()
	if err != nil {
		return nil, slerrors.InvalidQuery("malformed operator document for field " + field)
	}

	var conditions []*Expr
	var options string
	var regexPattern *bsoncore.Value
	for _, elem := range elems {
		op := elem.Key()
		v := elem.Value()
		switch op {
		case "$eq":
			conditions = append(conditions, &Expr{Kind: KindEq, Field: field, Value: copyValue(v)})
		case "$gt":
			conditions = append(conditions, &Expr{Kind: KindGt, Field: field, Value: copyValue(v)})
		case "$gte":
			conditions = append(conditions, &Expr{Kind: KindGte, Field: field, Value: copyValue(v)})
		case "$lt":
			conditions = append(conditions, &Expr{Kind: KindLt, Field: field, Value: copyValue(v)})
		case "$lte":
			conditions = append(conditions, &Expr{Kind: KindLte, Field: field, Value: copyValue(v)})
		case "$exists":
			b, ok := v.BooleanOK()
			if !ok {
				return nil, slerrors.InvalidQuery("$exists requires a boolean")
			}
			conditions = append(conditions, &Expr{Kind: KindExists, Field: field, ExistsWant: b})
		case "$regex":
			cv := copyValue(v)
			regexPattern = &cv
		case "$options":
			s, ok := v.StringValueOK()
			if !ok {
				return nil, slerrors.InvalidQuery("$options requires a string")
			}
			options = s
		default:
			return nil, slerrors.InvalidQuery("unknown filter operator " + op)
		}
	}

	if regexPattern != nil {
		pattern, ok := regexPattern.StringValueOK()
		if !ok {
			return nil, slerrors.InvalidQuery("$regex requires a string pattern")
		}
		compiled, err := compileRegex(pattern, options)
		if err != nil {
			return nil, slerrors.InvalidQuery("invalid $regex: " + err.Error())
		}
		conditions = append(conditions, &Expr{Kind: KindRegex, Field: field, Regex: compiled})
	}

	if len(conditions) == 0 {
		return nil, slerrors.InvalidQuery("empty operator document for field " + field)
	}
	if len(conditions) == 1 {
		return conditions[0], nil
	}
	return &Expr{Kind: KindAnd, Children: conditions}, nil
}

// compileRegex translates the closed flag set {i, s, m, x} into Go regexp
// syntax. `x` (extended/verbose mode) isn't a native RE2 flag; it's emulated
// by stripping unescaped whitespace and `#`-comments before compiling.
func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	var inline []rune
	extended := false
	for _, r := range options {
		switch r {
		case 'i', 's', 'm':
			inline = append(inline, r)
		case 'x':
			extended = true
		default:
			return nil, slerrors.InvalidQuery("unsupported regex option " + string(r))
		}
	}
	if extended {
		pattern = stripExtendedWhitespace(pattern)
	}
	if len(inline) > 0 {
		pattern = "(?" + string(inline) + ")" + pattern
	}
	return regexp.Compile(pattern)
}

func stripExtendedWhitespace(pattern string) string {
	var b strings.Builder
	inClass := false
	escaped := false
	inComment := false
	for _, r := range pattern {
		if inComment {
			if r == '\n' {
				inComment = false
			}
			continue
		}
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
			b.WriteRune(r)
		case '[':
			inClass = true
			b.WriteRune(r)
		case ']':
			inClass = false
			b.WriteRune(r)
		case '#':
			if !inClass {
				inComment = true
				continue
			}
			b.WriteRune(r)
		case ' ', '\t', '\n', '\r':
			if !inClass {
				continue
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func copyValue(v bsoncore.Value) bsoncore.Value {
	return bsoncore.Value{Type: v.Type, Data: append([]byte(nil), v.Data...)}
}
