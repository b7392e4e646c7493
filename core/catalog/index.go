package catalog

import (
	"encoding/binary"

	"github.com/sushant-115/sukunadb/core/indexing/bptree"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// varcharKeyWidth is the fixed prefix width indexed for VARCHAR key
// columns.
const varcharKeyWidth = 16

// IndexInfo binds a B+ tree to a table's key projection. Key tuples are
// encoded order-preservingly into fixed-size byte strings so the tree
// can compare them lexicographically: a null tag byte per column (nulls
// order first) followed by a fixed-width payload.
type IndexInfo struct {
	OID       uint32
	Name      string
	TableName string
	KeySchema *Schema
	KeyAttrs  []int
	Index     *bptree.BPlusTree
	keySize   int
}

// keyWidth returns the encoded width of one key column.
func keyWidth(t TypeID) int {
	switch t {
	case TypeInteger:
		return 1 + 8
	case TypeBoolean:
		return 1 + 1
	case TypeVarchar:
		return 1 + varcharKeyWidth
	default:
		return 1
	}
}

// keySizeFor returns the encoded width of a whole key schema.
func keySizeFor(s *Schema) int {
	n := 0
	for _, c := range s.Columns {
		n += keyWidth(c.Type)
	}
	return n
}

// EncodeKey serialises a key tuple into the index's fixed-size,
// order-preserving form.
func (ii *IndexInfo) EncodeKey(key *Tuple) []byte {
	buf := make([]byte, 0, ii.keySize)
	for i, c := range ii.KeySchema.Columns {
		v := key.Value(i)
		if v.IsNull() {
			buf = append(buf, 0)
			buf = append(buf, make([]byte, keyWidth(c.Type)-1)...)
			continue
		}
		buf = append(buf, 1)
		switch c.Type {
		case TypeInteger:
			// Flip the sign bit so big-endian bytes order numerically.
			var tmp [8]byte
			binary.BigEndian.PutUint64(tmp[:], uint64(v.AsInt())^(1<<63))
			buf = append(buf, tmp[:]...)
		case TypeBoolean:
			if v.AsBool() {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case TypeVarchar:
			var tmp [varcharKeyWidth]byte
			copy(tmp[:], v.AsString())
			buf = append(buf, tmp[:]...)
		}
	}
	return buf
}

// InsertEntry adds key -> rid to the index.
func (ii *IndexInfo) InsertEntry(key *Tuple, rid page.RID) error {
	return ii.Index.Insert(ii.EncodeKey(key), rid)
}

// DeleteEntry removes key from the index. Absent keys are a no-op.
func (ii *IndexInfo) DeleteEntry(key *Tuple) error {
	return ii.Index.Remove(ii.EncodeKey(key))
}

// ScanKey looks up the rid stored for key.
func (ii *IndexInfo) ScanKey(key *Tuple) (page.RID, bool, error) {
	return ii.Index.GetValue(ii.EncodeKey(key))
}
