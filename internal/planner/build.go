package planner

import (
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/filter"
	"github.com/kartikbazzad/slate/internal/keycodec"
)

// Options carries the non-filter parts of a query: sort, limit. Projection
// and distinct are handled above the plan tree, in the root package, since
// neither changes which records are read.
type Options struct {
	SortField string
	SortDesc  bool
	Skip      int64 // rows to drop before the first kept row
	Limit     int64 // 0 means unbounded
}

// Build chooses a source (full scan, id lookup, or one or more index scans),
// attaches any residual filter the source doesn't fully cover, and wraps the
// result with sort and limit per opts (§4.9).
func Build(h *engine.CollectionHandle, expr *filter.Expr, opts Options) *Plan {
	source, residual := selectSource(h, expr)
	root := source

	if needsKeyLookup(source) {
		root = &Node{Kind: KindKeyLookup, Child: root}
	}
	if residual != nil {
		root = &Node{Kind: KindFilter, Child: root, Residual: residual}
	}

	if opts.SortField != "" && !coveredBySortedSource(source, residual, opts.SortField, opts.SortDesc) {
		root = &Node{Kind: KindSort, Child: root, SortField: opts.SortField, SortDesc: opts.SortDesc}
	}
	if opts.Skip > 0 || opts.Limit > 0 {
		root = &Node{Kind: KindLimit, Child: root, Skip: opts.Skip, Limit: opts.Limit}
	}
	return &Plan{Root: root}
}

func needsKeyLookup(n *Node) bool {
	return n.Kind == KindIndexScan || n.Kind == KindIndexMerge
}

// coveredBySortedSource reports whether the chosen source already yields
// rows in the requested sort order, making a separate Sort node redundant —
// true only for an unfiltered-by-anything-else full-range scan of exactly
// the sort field.
func coveredBySortedSource(source *Node, residual *filter.Expr, sortField string, sortDesc bool) bool {
	if residual != nil {
		return false
	}
	if source.Kind != KindIndexScan {
		return false
	}
	if source.Field != sortField || source.Range.Kind != engine.RangeFull {
		return false
	}
	source.Reverse = sortDesc
	return true
}

// selectSource picks the cheapest available source for expr and returns the
// residual predicate (possibly expr itself, possibly nil) still left to
// check against full documents.
func selectSource(h *engine.CollectionHandle, expr *filter.Expr) (*Node, *filter.Expr) {
	if expr == nil {
		return &Node{Kind: KindScan}, nil
	}

	switch expr.Kind {
	case filter.KindEq:
		return selectEq(h, expr)
	case filter.KindGt, filter.KindGte, filter.KindLt, filter.KindLte:
		if node, ok := selectRange(h, expr); ok {
			return node, nil
		}
		return &Node{Kind: KindScan}, expr
	case filter.KindAnd:
		return selectAnd(h, expr)
	case filter.KindOr:
		return selectOr(h, expr)
	default:
		return &Node{Kind: KindScan}, expr
	}
}

func selectEq(h *engine.CollectionHandle, expr *filter.Expr) (*Node, *filter.Expr) {
	if expr.Field == "_id" {
		if v, ok := keycodec.FromRawValue(expr.Value); ok {
			return &Node{Kind: KindIdLookup, ID: v}, nil
		}
	}
	if expr.Value.Type != bsontype.Null && h.IsIndexed(expr.Field) {
		if v, ok := keycodec.FromRawValue(expr.Value); ok {
			return &Node{
				Kind:  KindIndexScan,
				Field: expr.Field,
				Range: engine.IndexRange{Kind: engine.RangeEq, EqValue: v.Bytes},
			}, nil
		}
	}
	return &Node{Kind: KindScan}, expr
}

// selectRange builds an index scan for a single comparison operator, with an
// open-ended bound on the side the operator doesn't constrain.
func selectRange(h *engine.CollectionHandle, expr *filter.Expr) (*Node, bool) {
	if !h.IsIndexed(expr.Field) {
		return nil, false
	}
	v, ok := keycodec.FromRawValue(expr.Value)
	if !ok {
		return nil, false
	}
	rng := engine.IndexRange{Kind: engine.RangeBounded}
	switch expr.Kind {
	case filter.KindGt:
		rng.Lower = &engine.Bound{Value: v.Bytes, Inclusive: false}
	case filter.KindGte:
		rng.Lower = &engine.Bound{Value: v.Bytes, Inclusive: true}
	case filter.KindLt:
		rng.Upper = &engine.Bound{Value: v.Bytes, Inclusive: false}
	case filter.KindLte:
		rng.Upper = &engine.Bound{Value: v.Bytes, Inclusive: true}
	}
	return &Node{Kind: KindIndexScan, Field: expr.Field, Range: rng}, true
}

// mergeBound narrows dst (nil meaning unbounded) by adding src, keeping the
// tighter of the two when both apply.
func mergeBound(dst *engine.Bound, src *engine.Bound, keepLower bool) *engine.Bound {
	if dst == nil {
		return src
	}
	if src == nil {
		return dst
	}
	cmp := compareBoundValues(dst.Value, src.Value)
	if keepLower {
		if cmp > 0 || (cmp == 0 && !src.Inclusive) {
			return src
		}
		return dst
	}
	if cmp < 0 || (cmp == 0 && !src.Inclusive) {
		return src
	}
	return dst
}

func compareBoundValues(a, b []byte) int {
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

// selectAnd picks, among an And's children, the single best index/id source
// — priority: an _id equality, then any indexed equality, then the
// intersection of indexed range bounds on one field — and folds every
// remaining child (plus unused range bounds on other fields) into a residual
// And.
func selectAnd(h *engine.CollectionHandle, expr *filter.Expr) (*Node, *filter.Expr) {
	var idEq *filter.Expr
	var eqChild *filter.Expr
	rangesByField := map[string][]*filter.Expr{}
	var other []*filter.Expr

	for _, c := range expr.Children {
		switch c.Kind {
		case filter.KindEq:
			if c.Field == "_id" && idEq == nil {
				idEq = c
				continue
			}
			if eqChild == nil && c.Value.Type != bsontype.Null && h.IsIndexed(c.Field) {
				eqChild = c
				continue
			}
		case filter.KindGt, filter.KindGte, filter.KindLt, filter.KindLte:
			if h.IsIndexed(c.Field) {
				rangesByField[c.Field] = append(rangesByField[c.Field], c)
				continue
			}
		}
		other = append(other, c)
	}

	var source *Node

	switch {
	case idEq != nil:
		if v, ok := keycodec.FromRawValue(idEq.Value); ok {
			source = &Node{Kind: KindIdLookup, ID: v}
			// An _id lookup already uniquely identifies the document; any
			// other equality child becomes residual, range children too.
			for _, cs := range rangesByField {
				other = append(other, cs...)
			}
			rangesByField = nil
			if eqChild != nil {
				other = append(other, eqChild)
				eqChild = nil
			}
		}
	case eqChild != nil:
		if v, ok := keycodec.FromRawValue(eqChild.Value); ok {
			source = &Node{Kind: KindIndexScan, Field: eqChild.Field, Range: engine.IndexRange{Kind: engine.RangeEq, EqValue: v.Bytes}}
			if idEq != nil {
				other = append(other, idEq)
			}
			for _, cs := range rangesByField {
				other = append(other, cs...)
			}
			rangesByField = nil
		}
	default:
		// Use the range bounds on whichever indexed field has the most
		// constraints; fold the rest back into the residual.
		var bestField string
		var bestCount int
		for field, cs := range rangesByField {
			if len(cs) > bestCount {
				bestField, bestCount = field, len(cs)
			}
		}
		if bestField != "" {
			rng := engine.IndexRange{Kind: engine.RangeBounded}
			for _, c := range rangesByField[bestField] {
				v, ok := keycodec.FromRawValue(c.Value)
				if !ok {
					other = append(other, c)
					continue
				}
				switch c.Kind {
				case filter.KindGt:
					rng.Lower = mergeBound(rng.Lower, &engine.Bound{Value: v.Bytes, Inclusive: false}, true)
				case filter.KindGte:
					rng.Lower = mergeBound(rng.Lower, &engine.Bound{Value: v.Bytes, Inclusive: true}, true)
				case filter.KindLt:
					rng.Upper = mergeBound(rng.Upper, &engine.Bound{Value: v.Bytes, Inclusive: false}, false)
				case filter.KindLte:
					rng.Upper = mergeBound(rng.Upper, &engine.Bound{Value: v.Bytes, Inclusive: true}, false)
				}
			}
			source = &Node{Kind: KindIndexScan, Field: bestField, Range: rng}
			delete(rangesByField, bestField)
			for _, cs := range rangesByField {
				other = append(other, cs...)
			}
			if idEq != nil {
				other = append(other, idEq)
			}
		}
	}

	if source == nil {
		return &Node{Kind: KindScan}, expr
	}
	if len(other) == 0 {
		return source, nil
	}
	residual := &filter.Expr{Kind: filter.KindAnd, Children: other}
	if len(other) == 1 {
		residual = other[0]
	}
	return source, residual
}

// selectOr attempts to turn every branch of an Or into an index/id source
// with no residual of its own; if every branch succeeds, the whole
// expression is satisfied by an IndexMerge with no residual filter left.
// Otherwise the safe fallback is a full scan with the original expression
// re-checked against every document.
func selectOr(h *engine.CollectionHandle, expr *filter.Expr) (*Node, *filter.Expr) {
	children := make([]*Node, 0, len(expr.Children))
	for _, c := range expr.Children {
		node, residual := selectSource(h, c)
		if residual != nil || node.Kind == KindScan {
			return &Node{Kind: KindScan}, expr
		}
		children = append(children, node)
	}
	if len(children) == 0 {
		return &Node{Kind: KindScan}, expr
	}
	return &Node{Kind: KindIndexMerge, Children: children}, nil
}
