// Package catalog holds the schema/tuple model, the slotted-page table
// heap and the catalog that maps names and oids to tables and indexes.
package catalog

import (
	"encoding/binary"
	"fmt"
)

// TypeID enumerates column types.
type TypeID int

const (
	TypeInvalid TypeID = iota
	TypeBoolean
	TypeInteger
	TypeVarchar
)

func (t TypeID) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		return "INTEGER"
	case TypeVarchar:
		return "VARCHAR"
	default:
		return "INVALID"
	}
}

// CmpBool is a three-valued comparison result: comparisons against NULL
// yield CmpNull rather than true or false.
type CmpBool int

const (
	CmpFalse CmpBool = iota
	CmpTrue
	CmpNull
)

// Value is a typed, nullable scalar.
type Value struct {
	typ    TypeID
	isNull bool
	i      int64
	b      bool
	s      string
}

// NewIntegerValue builds an INTEGER value.
func NewIntegerValue(v int64) Value { return Value{typ: TypeInteger, i: v} }

// NewBooleanValue builds a BOOLEAN value.
func NewBooleanValue(v bool) Value { return Value{typ: TypeBoolean, b: v} }

// NewVarcharValue builds a VARCHAR value.
func NewVarcharValue(v string) Value { return Value{typ: TypeVarchar, s: v} }

// NewNullValue builds the NULL of the given type.
func NewNullValue(t TypeID) Value { return Value{typ: t, isNull: true} }

// Type returns the value's type id.
func (v Value) Type() TypeID { return v.typ }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.isNull }

// AsInt returns the integer payload. Meaningful only for non-null
// INTEGER values.
func (v Value) AsInt() int64 { return v.i }

// AsBool returns the boolean payload.
func (v Value) AsBool() bool { return v.b }

// AsString returns the varchar payload.
func (v Value) AsString() string { return v.s }

func (v Value) String() string {
	if v.isNull {
		return "NULL"
	}
	switch v.typ {
	case TypeInteger:
		return fmt.Sprintf("%d", v.i)
	case TypeBoolean:
		return fmt.Sprintf("%t", v.b)
	case TypeVarchar:
		return v.s
	default:
		return "<invalid>"
	}
}

// CompareEquals returns CmpNull when either side is NULL.
func (v Value) CompareEquals(o Value) CmpBool {
	if v.isNull || o.isNull {
		return CmpNull
	}
	if v.equalsNonNull(o) {
		return CmpTrue
	}
	return CmpFalse
}

// CompareLessThan orders two non-null values of the same type.
func (v Value) CompareLessThan(o Value) CmpBool {
	if v.isNull || o.isNull {
		return CmpNull
	}
	if v.lessNonNull(o) {
		return CmpTrue
	}
	return CmpFalse
}

// CompareGreaterThan is the strict inverse ordering.
func (v Value) CompareGreaterThan(o Value) CmpBool {
	if v.isNull || o.isNull {
		return CmpNull
	}
	if !v.lessNonNull(o) && !v.equalsNonNull(o) {
		return CmpTrue
	}
	return CmpFalse
}

func (v Value) equalsNonNull(o Value) bool {
	switch v.typ {
	case TypeInteger:
		return v.i == o.i
	case TypeBoolean:
		return v.b == o.b
	case TypeVarchar:
		return v.s == o.s
	}
	return false
}

func (v Value) lessNonNull(o Value) bool {
	switch v.typ {
	case TypeInteger:
		return v.i < o.i
	case TypeBoolean:
		return !v.b && o.b
	case TypeVarchar:
		return v.s < o.s
	}
	return false
}

// serialize appends the value's storage form: a null tag byte followed
// by the fixed or length-prefixed payload.
func (v Value) serialize(buf []byte) []byte {
	if v.isNull {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	switch v.typ {
	case TypeInteger:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case TypeBoolean:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case TypeVarchar:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.s)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, v.s...)
	}
	return buf
}

// deserializeValue reads one value of type t, returning the value and
// the number of bytes consumed.
func deserializeValue(t TypeID, data []byte) (Value, int) {
	if data[0] == 0 {
		return NewNullValue(t), 1
	}
	switch t {
	case TypeInteger:
		return NewIntegerValue(int64(binary.LittleEndian.Uint64(data[1:]))), 9
	case TypeBoolean:
		return NewBooleanValue(data[1] == 1), 2
	case TypeVarchar:
		n := int(binary.LittleEndian.Uint32(data[1:]))
		return NewVarcharValue(string(data[5 : 5+n])), 5 + n
	default:
		return Value{}, 1
	}
}
