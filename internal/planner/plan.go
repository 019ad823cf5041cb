// Package planner turns a parsed filter expression into a tree of plan
// nodes describing how the executor should satisfy a query (component C9):
// which indexes to scan, what residual filtering is still required after an
// index narrows the candidates, and where sort/limit/projection attach.
package planner

import (
	"github.com/kartikbazzad/slate/engine"
	"github.com/kartikbazzad/slate/internal/filter"
	"github.com/kartikbazzad/slate/internal/keycodec"
)

// Kind discriminates plan node variants.
type Kind int

const (
	// KindScan walks every live record in the collection.
	KindScan Kind = iota
	// KindIdLookup fetches (at most) one record by its exact _id.
	KindIdLookup
	// KindIndexScan walks one field's index within a range, yielding doc ids
	// only, never documents or field values; there are no covered scans.
	KindIndexScan
	// KindIndexMerge unions several index/id sources, deduplicating by doc id.
	KindIndexMerge
	// KindKeyLookup fetches the full document for each doc id a child
	// source yields.
	KindKeyLookup
	// KindFilter re-evaluates a residual predicate against full documents.
	KindFilter
	// KindSort buffers its child's rows and emits them in sorted order.
	KindSort
	// KindLimit skips a fixed number of rows, then stops after emitting a
	// fixed number more.
	KindLimit
)

// Node is one step of a query plan. Only the fields relevant to Kind are
// populated.
type Node struct {
	Kind Kind

	Child    *Node   // KeyLookup, Filter, Sort, Limit
	Children []*Node // IndexMerge

	// KindIdLookup
	ID keycodec.Value

	// KindIndexScan
	Field   string
	Range   engine.IndexRange
	Reverse bool

	// KindFilter
	Residual *filter.Expr

	// KindSort
	SortField string
	SortDesc  bool

	// KindLimit
	Skip  int64
	Limit int64 // 0 (with Skip also 0) never occurs; a Limit node always bounds something
}

// Plan is a complete, ready-to-execute query: the root of its node tree.
// Build always wraps a bare index source in a KeyLookup, so every plan it
// returns yields full documents.
type Plan struct {
	Root *Node
}
