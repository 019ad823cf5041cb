// Package filter translates a BSON filter document into an expression tree
// and evaluates it against raw document bytes (component C7, paired with the
// raw-BSON scanner for evaluation).
package filter

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
)

// Kind discriminates expression node variants.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindEq
	KindGt
	KindGte
	KindLt
	KindLte
	KindRegex
	KindExists
)

// Expr is the parsed predicate tree. Only the fields relevant to Kind are
// populated; strings and value bytes are copied out of the source filter
// document at parse time (Go has no borrow checker, so owning eagerly is the
// only sound option — see SPEC_FULL.md §9).
type Expr struct {
	Kind       Kind
	Children   []*Expr // And, Or
	Field      string  // Eq, Gt, Gte, Lt, Lte, Regex, Exists
	Value      bsoncore.Value
	Regex      *regexp.Regexp
	ExistsWant bool // Exists
}

// Fields returns the set of field paths referenced anywhere in the tree,
// used by the planner to decide index pushdown.
func (e *Expr) Fields() []string {
	seen := map[string]struct{}{}
	var out []string
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}
		switch n.Kind {
		case KindAnd, KindOr:
			for _, c := range n.Children {
				walk(c)
			}
		default:
			if _, ok := seen[n.Field]; !ok {
				seen[n.Field] = struct{}{}
				out = append(out, n.Field)
			}
		}
	}
	walk(e)
	return out
}
