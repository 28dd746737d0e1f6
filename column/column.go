package column

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// ErrDuplicateColumn indicates a column name appears twice in one schema.
var ErrDuplicateColumn = errors.New("duplicate column name")

// Column is a named, typed value buffer. The declared Type always matches
// the Arrow type of Values.
type Column struct {
	Name   string
	Type   Type
	Values arrow.Array
}

// New wraps values as a column, deriving the declared type from the Arrow
// data type. The column takes its own reference to values.
func New(name string, values arrow.Array) (*Column, error) {
	if values == nil {
		return nil, fmt.Errorf("column %q: nil values", name)
	}
	t, err := FromArrow(values.DataType())
	if err != nil {
		var ute *UnsupportedTypeError
		if errors.As(err, &ute) {
			ute.Column = name
		}
		return nil, err
	}
	values.Retain()
	return &Column{Name: name, Type: t, Values: values}, nil
}

// NewTyped wraps values as a column of the declared type t.
// Returns an error if t and the buffer's Arrow type disagree.
func NewTyped(name string, t Type, values arrow.Array) (*Column, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	if values == nil {
		return nil, fmt.Errorf("column %q: nil values", name)
	}
	if !arrow.TypeEqual(t.ToArrow(), values.DataType()) {
		return nil, fmt.Errorf("column %q: declared %s but buffer is %s: %w",
			name, t, values.DataType(), ErrInvalidType)
	}
	values.Retain()
	return &Column{Name: name, Type: t, Values: values}, nil
}

// Len returns the number of values.
func (c *Column) Len() int { return c.Values.Len() }

// Nullable reports whether the buffer carries at least one null.
func (c *Column) Nullable() bool { return c.Values.NullN() > 0 }

// Retain increments the buffer reference count.
func (c *Column) Retain() { c.Values.Retain() }

// Release decrements the buffer reference count.
func (c *Column) Release() { c.Values.Release() }

// Field is a named column type within a Schema.
type Field struct {
	Name string
	Type Type
}

// Schema is an ordered, immutable set of uniquely named fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema creates a schema from fields, rejecting duplicate names and
// invalid types.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, ok := s.index[f.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, f.Name)
		}
		if err := f.Type.Validate(); err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// SchemaFromArrow converts an Arrow schema to a column schema.
func SchemaFromArrow(as *arrow.Schema) (*Schema, error) {
	fields := make([]Field, 0, as.NumFields())
	for _, f := range as.Fields() {
		t, err := FromArrow(f.Type)
		if err != nil {
			var ute *UnsupportedTypeError
			if errors.As(err, &ute) {
				ute.Column = f.Name
			}
			return nil, err
		}
		fields = append(fields, Field{Name: f.Name, Type: t})
	}
	return NewSchema(fields...)
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns the i-th field.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the type of the named field.
func (s *Schema) Lookup(name string) (Type, bool) {
	i, ok := s.index[name]
	if !ok {
		return Type{}, false
	}
	return s.fields[i].Type, true
}

// Index returns the position of the named field, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Equal reports whether both schemas have the same fields in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, f := range s.fields {
		if o.fields[i] != f {
			return false
		}
	}
	return true
}

// ToArrow builds the Arrow schema; every field is nullable since absent
// columns are materialized as nulls.
func (s *Schema) ToArrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s.fields))
	for i, f := range s.fields {
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type.ToArrow(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func (s *Schema) String() string {
	out := "schema<"
	for i, f := range s.fields {
		if i > 0 {
			out += ", "
		}
		out += f.Name + ": " + f.Type.String()
	}
	return out + ">"
}
