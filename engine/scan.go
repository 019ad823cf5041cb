package engine

import (
	"bytes"
	"math"

	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/internal/indexdiff"
	"github.com/kartikbazzad/slate/internal/keycodec"
	"github.com/kartikbazzad/slate/internal/record"
	"github.com/kartikbazzad/slate/kv"
	slerrors "github.com/kartikbazzad/slate/pkg/errors"
)

// DocRow is one live document surfaced by a full-collection scan.
type DocRow struct {
	ID  keycodec.Value
	Doc bsoncore.Document
}

// RecordIterator walks a collection's live (non-expired) records in doc-id
// order.
type RecordIterator struct {
	it  kv.Iterator
	now int64
	cur DocRow
	err error
}

// Scan opens an iterator over every live record in h, in ascending doc-id
// order.
func (t *Txn) Scan(h *CollectionHandle) (*RecordIterator, error) {
	it, err := t.kvTxn.ScanPrefix(h.CF, keycodec.PrefixRecord(h.Name))
	if err != nil {
		return nil, slerrors.Store("scan records", err)
	}
	return &RecordIterator{it: it, now: t.now}, nil
}

func (r *RecordIterator) Next() bool {
	for r.it.Next() {
		raw := r.it.Value()
		if record.IsExpired(raw, r.now) {
			continue
		}
		dk, ok := keycodec.DecodeKey(r.it.Key())
		if !ok {
			r.err = slerrors.InvalidKey("malformed record key")
			return false
		}
		r.cur = DocRow{ID: dk.DocID, Doc: bsoncore.Document(record.Document(raw))}
		return true
	}
	return false
}

func (r *RecordIterator) Row() DocRow { return r.cur }
func (r *RecordIterator) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.it.Err()
}
func (r *RecordIterator) Close() error { return r.it.Close() }

// IndexRangeKind discriminates the shapes an index scan can take.
type IndexRangeKind int

const (
	// RangeFull scans every entry of the index.
	RangeFull IndexRangeKind = iota
	// RangeEq scans only entries with one exact sort-encoded value.
	RangeEq
	// RangeBounded scans entries within [Lower, Upper] (either may be nil
	// for an open-ended bound), honoring each Bound's Inclusive flag.
	RangeBounded
)

// Bound is one side of a bounded index range scan.
type Bound struct {
	Value     []byte
	Inclusive bool
}

// IndexRange describes an index scan's shape, over sort-encoded value bytes
// (produced by keycodec's numeric/string encoders).
type IndexRange struct {
	Kind    IndexRangeKind
	EqValue []byte
	Lower   *Bound
	Upper   *Bound
}

// IndexRow is one live index entry: the document it points at, the raw
// sort-encoded value it was keyed under, and its metadata.
type IndexRow struct {
	DocID keycodec.Value
	Value []byte
	Meta  indexdiff.Meta
}

// IndexIterator walks one field's index entries, honoring an IndexRange and
// a scan direction, filtering out expired entries without touching the
// underlying record.
type IndexIterator struct {
	it             kv.Iterator
	now            int64
	rng            IndexRange
	fieldPrefixLen int
	reverse        bool
	cur            IndexRow
	err            error
}

// ScanIndex opens an index scan over h's field, which must be one of h's
// declared fields or the implicit ttl field.
func (t *Txn) ScanIndex(h *CollectionHandle, field string, rng IndexRange, reverse bool) (*IndexIterator, error) {
	fieldPrefix := keycodec.PrefixIndexField(h.Name, field)
	prefix := fieldPrefix
	if rng.Kind == RangeEq {
		prefix = keycodec.PrefixIndexValue(h.Name, field, rng.EqValue)
	}

	var it kv.Iterator
	var err error
	if reverse {
		it, err = t.kvTxn.ScanPrefixRev(h.CF, prefix)
	} else {
		it, err = t.kvTxn.ScanPrefix(h.CF, prefix)
	}
	if err != nil {
		return nil, slerrors.Store("scan index", err)
	}
	return &IndexIterator{
		it:             it,
		now:            t.now,
		rng:            rng,
		fieldPrefixLen: len(fieldPrefix),
		reverse:        reverse,
	}, nil
}

type rangeStatus int

const (
	rangeBelow rangeStatus = iota
	rangeWithin
	rangeAbove
)

func (ix *IndexIterator) status(value []byte) rangeStatus {
	if ix.rng.Lower != nil {
		cmp := bytes.Compare(value, ix.rng.Lower.Value)
		if cmp < 0 || (cmp == 0 && !ix.rng.Lower.Inclusive) {
			return rangeBelow
		}
	}
	if ix.rng.Upper != nil {
		cmp := bytes.Compare(value, ix.rng.Upper.Value)
		if cmp > 0 || (cmp == 0 && !ix.rng.Upper.Inclusive) {
			return rangeAbove
		}
	}
	return rangeWithin
}

func (ix *IndexIterator) Next() bool {
	for ix.it.Next() {
		valueBytes, docID, ok := keycodec.ParseIndexTail(ix.it.Key(), ix.fieldPrefixLen)
		if !ok {
			ix.err = slerrors.InvalidKey("malformed index key")
			return false
		}
		if ix.rng.Kind == RangeBounded {
			switch ix.status(valueBytes) {
			case rangeBelow:
				if ix.reverse {
					return false
				}
				continue
			case rangeAbove:
				if ix.reverse {
					continue
				}
				return false
			}
		}
		meta, err := indexdiff.DecodeMeta(ix.it.Value())
		if err != nil {
			ix.err = err
			return false
		}
		if meta.IsExpired(ix.now) {
			continue
		}
		ix.cur = IndexRow{DocID: docID, Value: append([]byte(nil), valueBytes...), Meta: meta}
		return true
	}
	return false
}

func (ix *IndexIterator) Row() IndexRow { return ix.cur }
func (ix *IndexIterator) Err() error {
	if ix.err != nil {
		return ix.err
	}
	return ix.it.Err()
}
func (ix *IndexIterator) Close() error { return ix.it.Close() }

// PurgeBefore deletes every document in h whose ttl is strictly less than
// cutoff, driven entirely off the implicit ttl index so it never touches a
// live document's record to decide expiry (§4.11). Returns the number of
// documents removed.
func (t *Txn) PurgeBefore(h *CollectionHandle, cutoff int64) (int64, error) {
	ix, err := t.ScanIndex(h, TTLField, IndexRange{Kind: RangeFull}, false)
	if err != nil {
		return 0, err
	}
	defer ix.Close()
	// The iterator hides entries already expired as of t.now, which are the
	// very ones to purge; let it yield every entry and judge against cutoff.
	ix.now = math.MinInt64

	var deleted int64
	for ix.Next() {
		row := ix.Row()
		if !row.Meta.HasTTL || row.Meta.TTLMs >= cutoff {
			break // ttl index is sorted chronologically; nothing past here is due
		}
		if err := t.Delete(h, row.DocID); err != nil {
			return deleted, err
		}
		deleted++
	}
	if err := ix.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
