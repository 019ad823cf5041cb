package indexdiff

import (
	"go.mongodb.org/mongo-driver/bson/bsoncore"

	"github.com/kartikbazzad/slate/internal/keycodec"
	"github.com/kartikbazzad/slate/kv"
)

// oldEntry is a parsed reverse-map row: the value bytes it was keyed under,
// the reverse-map key itself, and the forward index key it points to.
type oldEntry struct {
	valueBytes string
	mapKey     []byte
	indexKey   []byte
}

// Apply diffs a document's indexed fields (old vs new) and writes the
// minimal set of index/reverse-map mutations directly via txn. newDoc is nil
// on delete; fields should already include the implicit "ttl" field.
func Apply(txn kv.Txn, cf kv.Cf, collection string, fields []string, newDoc bsoncore.Document, docID keycodec.Value, hasTTL bool, ttlMs int64, now int64) error {
	for _, field := range fields {
		if err := applyField(txn, cf, collection, field, newDoc, docID, hasTTL, ttlMs); err != nil {
			return err
		}
	}
	return nil
}

func applyField(txn kv.Txn, cf kv.Cf, collection, field string, newDoc bsoncore.Document, docID keycodec.Value, hasTTL bool, ttlMs int64) error {
	oldEntries, err := scanOldEntries(txn, cf, collection, field, docID)
	if err != nil {
		return err
	}

	var newValues []keycodec.Value
	if newDoc != nil {
		newValues = keycodec.ExtractAll(newDoc, field)
	}
	newSet := make(map[string]keycodec.Value, len(newValues))
	for _, v := range newValues {
		newSet[string(v.Bytes)] = v
	}

	oldSet := make(map[string]oldEntry, len(oldEntries))
	for _, e := range oldEntries {
		oldSet[e.valueBytes] = e
	}

	// Delete entries present in old but absent from new.
	for key, e := range oldSet {
		if _, ok := newSet[key]; ok {
			continue
		}
		if err := txn.Delete(cf, e.indexKey); err != nil {
			return err
		}
		if err := txn.Delete(cf, e.mapKey); err != nil {
			return err
		}
	}

	// Insert entries present in new but absent from old; refresh metadata
	// for the intersection unconditionally (simpler than diffing metadata,
	// and rewriting an unchanged entry leaves it the same).
	for key, v := range newSet {
		meta := Meta{Tag: v.Tag, HasTTL: hasTTL, TTLMs: ttlMs}
		indexKey := keycodec.EncodeIndexKey(collection, field, v.Bytes, docID)
		if err := txn.Put(cf, indexKey, meta.Encode()); err != nil {
			return err
		}
		if _, existed := oldSet[key]; !existed {
			mapKey := keycodec.EncodeIndexMapKey(collection, field, docID, v.Bytes)
			if err := txn.Put(cf, mapKey, indexKey); err != nil {
				return err
			}
		}
	}
	return nil
}

func scanOldEntries(txn kv.Txn, cf kv.Cf, collection, field string, docID keycodec.Value) ([]oldEntry, error) {
	prefix := keycodec.PrefixIndexMapRecord(collection, field, docID)
	it, err := txn.ScanPrefix(cf, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []oldEntry
	for it.Next() {
		mapKey := append([]byte(nil), it.Key()...)
		indexKey := append([]byte(nil), it.Value()...)
		valueBytes := mapKey[len(prefix):]
		out = append(out, oldEntry{
			valueBytes: string(valueBytes),
			mapKey:     mapKey,
			indexKey:   indexKey,
		})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes every forward and reverse index entry for one document
// across all fields — used by full document delete.
func Remove(txn kv.Txn, cf kv.Cf, collection string, fields []string, docID keycodec.Value) error {
	return Apply(txn, cf, collection, fields, nil, docID, false, 0, 0)
}
