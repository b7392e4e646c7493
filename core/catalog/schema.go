package catalog

import (
	"fmt"
	"strings"
)

// Column describes one attribute of a schema.
type Column struct {
	Name string
	Type TypeID
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column
}

// NewSchema builds a schema from columns.
func NewSchema(cols ...Column) *Schema {
	return &Schema{Columns: cols}
}

// ColumnCount returns the number of columns.
func (s *Schema) ColumnCount() int { return len(s.Columns) }

// ColumnIndex finds a column by name, returning -1 when absent.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// CopySchema projects the columns at attrs into a new schema.
func CopySchema(from *Schema, attrs []int) *Schema {
	cols := make([]Column, 0, len(attrs))
	for _, i := range attrs {
		cols = append(cols, from.Columns[i])
	}
	return &Schema{Columns: cols}
}

// JoinSchemas concatenates two schemas left-then-right.
func JoinSchemas(left, right *Schema) *Schema {
	cols := make([]Column, 0, len(left.Columns)+len(right.Columns))
	cols = append(cols, left.Columns...)
	cols = append(cols, right.Columns...)
	return &Schema{Columns: cols}
}

func (s *Schema) String() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
