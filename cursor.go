package slate

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/internal/executor"
)

// Cursor wraps one statement's result (§4.12). Find and Distinct statements
// produce a lazily-walked Cursor: Next/Doc stream rows one at a time without
// materializing the whole result, except where Sort or Distinct require
// buffering. Mutation statements run to completion inside Execute and
// populate Result immediately; their Cursor has nothing left to iterate. A
// Cursor must not be used past its transaction's commit or rollback.
type Cursor struct {
	it   executor.Iterator
	proj []string

	distinctVals []bsoncore.Value
	idx          int
	usingBuffer  bool

	result Result

	cur bsoncore.Document
	err error
}

// Next advances the cursor. Returns false at end of stream or on error;
// check Err to distinguish the two.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if c.usingBuffer {
		c.idx++
		if c.idx >= len(c.distinctVals) {
			return false
		}
		return true
	}
	if c.it == nil {
		return false
	}
	if !c.it.Next() {
		c.err = c.it.Err()
		return false
	}
	doc := c.it.Row().Doc
	if c.proj != nil {
		doc = projectDoc(doc, c.proj)
	}
	c.cur = doc
	return true
}

// Doc returns the current row's document. Valid only after Next returned
// true and when this Cursor was built from a Find statement.
func (c *Cursor) Doc() bsoncore.Document { return c.cur }

// DistinctValue returns the current row's value. Valid only after Next
// returned true and when this Cursor was built from a Distinct statement.
func (c *Cursor) DistinctValue() bsoncore.Value { return c.distinctVals[c.idx] }

// Err returns the first error encountered, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the cursor's underlying iterator. Safe to call more than
// once and on a Cursor with no iterator (e.g. a mutation result).
func (c *Cursor) Close() error {
	if c.it == nil {
		return nil
	}
	return c.it.Close()
}

// Execute drains the cursor and returns a summary. For a Find or Distinct
// statement, Matched counts the rows produced. For a mutation statement the
// Result was already computed by Txn.Execute and this simply returns it
// (draining what little is left of the stream, if anything, first).
func (c *Cursor) Execute() (Result, error) {
	for c.Next() {
		if c.usingBuffer || c.it != nil {
			c.result.Matched++
		}
	}
	if err := c.Err(); err != nil {
		return Result{}, err
	}
	return c.result, nil
}
