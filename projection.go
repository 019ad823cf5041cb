package slate

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncore"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/kartikbazzad/slate/internal/rawbson"
)

// projNode is one level of the tree projectDoc assembles before encoding:
// an ordered set of children (insertion order preserved, since BSON
// documents are ordered and a deterministic field order makes output
// predictable) that are either a leaf value or another level of nesting.
type projNode struct {
	order    []string
	children map[string]*projNode
	isLeaf   bool
	value    bsoncore.Value
}

func newProjNode() *projNode {
	return &projNode{children: map[string]*projNode{}}
}

func (n *projNode) child(key string) *projNode {
	c, ok := n.children[key]
	if !ok {
		c = newProjNode()
		n.children[key] = c
		n.order = append(n.order, key)
	}
	return c
}

func insertProjValue(root *projNode, path []string, v bsoncore.Value) {
	n := root
	for _, seg := range path[:len(path)-1] {
		n = n.child(seg)
	}
	leaf := n.child(path[len(path)-1])
	leaf.isLeaf = true
	leaf.value = v
}

func encodeProjNode(n *projNode) bsoncore.Document {
	idx, buf := bsoncore.AppendDocumentStart(nil)
	for _, key := range n.order {
		c := n.children[key]
		if c.isLeaf {
			buf = bsoncore.AppendValueElement(buf, key, c.value)
			continue
		}
		sub := encodeProjNode(c)
		buf = bsoncore.AppendValueElement(buf, key, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: sub})
	}
	buf, _ = bsoncore.AppendDocumentEnd(buf, idx)
	return bsoncore.Document(buf)
}

// projectDoc builds a new document containing only the requested dotted
// field paths (each contributing just its requested sub-fields, per
// §4.10), plus _id unconditionally.
func projectDoc(doc bsoncore.Document, fields []string) bsoncore.Document {
	root := newProjNode()
	if v, ok := rawbson.FindFieldPath(doc, "_id"); ok {
		insertProjValue(root, []string{"_id"}, v)
	}
	for _, f := range fields {
		if f == "_id" {
			continue
		}
		v, ok := rawbson.FindFieldPath(doc, f)
		if !ok {
			continue
		}
		insertProjValue(root, strings.Split(f, "."), v)
	}
	return encodeProjNode(root)
}
