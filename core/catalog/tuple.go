package catalog

import (
	"strings"

	"github.com/sushant-115/sukunadb/core/storage/page"
)

// TupleMeta is the per-tuple header kept in the heap: currently just the
// deletion mark flipped by delete and by abort undo.
type TupleMeta struct {
	IsDeleted bool
}

// Tuple is an ordered list of values, optionally carrying the RID it was
// read from.
type Tuple struct {
	values []Value
	rid    page.RID
}

// NewTuple builds a tuple from values.
func NewTuple(values []Value) *Tuple {
	return &Tuple{values: values, rid: page.RID{PageID: page.InvalidPageID}}
}

// Value returns the i-th value.
func (t *Tuple) Value(i int) Value { return t.values[i] }

// Values returns the backing value slice.
func (t *Tuple) Values() []Value { return t.values }

// RID returns the tuple's heap location.
func (t *Tuple) RID() page.RID { return t.rid }

// SetRID binds the tuple to a heap location.
func (t *Tuple) SetRID(rid page.RID) { t.rid = rid }

// KeyFromTuple projects the key attributes into a key tuple.
func (t *Tuple) KeyFromTuple(keyAttrs []int) *Tuple {
	vals := make([]Value, len(keyAttrs))
	for i, a := range keyAttrs {
		vals[i] = t.values[a]
	}
	return NewTuple(vals)
}

// Serialize encodes the tuple's values for heap storage.
func (t *Tuple) Serialize() []byte {
	var buf []byte
	for _, v := range t.values {
		buf = v.serialize(buf)
	}
	return buf
}

// DeserializeTuple decodes a tuple stored under schema.
func DeserializeTuple(schema *Schema, data []byte) *Tuple {
	vals := make([]Value, schema.ColumnCount())
	off := 0
	for i, col := range schema.Columns {
		v, n := deserializeValue(col.Type, data[off:])
		vals[i] = v
		off += n
	}
	return NewTuple(vals)
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
