// Package segment holds the immutable unit of storage: a set of equally
// long columns written by one write or append operation.
package segment

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/segstore/column"
)

// ErrEmptyID indicates a segment was created without an identifier.
var ErrEmptyID = errors.New("segment: empty id")

// Segment is an immutable, ordered set of columns sharing one row count.
// Its schema lists exactly the columns physically present; a column absent
// here may exist in other segments of the same symbol.
//
// Segments are reference counted through the underlying Arrow record.
type Segment struct {
	id     string
	seq    int
	record arrow.RecordBatch
	schema *column.Schema
}

// New wraps rec as a segment. seq is the write order within its symbol.
// The segment takes its own reference to rec.
func New(id string, seq int, rec arrow.RecordBatch) (*Segment, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if rec == nil {
		return nil, fmt.Errorf("segment %s: nil record", id)
	}
	schema, err := column.SchemaFromArrow(rec.Schema())
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", id, err)
	}
	rec.Retain()
	return &Segment{id: id, seq: seq, record: rec, schema: schema}, nil
}

// FromColumns assembles a segment from columns of equal length.
func FromColumns(id string, seq int, cols ...*column.Column) (*Segment, error) {
	fields := make([]arrow.Field, len(cols))
	arrays := make([]arrow.Array, len(cols))
	rows := int64(0)
	for i, c := range cols {
		if i == 0 {
			rows = int64(c.Len())
		} else if int64(c.Len()) != rows {
			return nil, fmt.Errorf("segment %s: column %q has %d rows, expected %d: %w",
				id, c.Name, c.Len(), rows, column.ErrLengthMismatch)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: c.Type.ToArrow(), Nullable: true}
		arrays[i] = c.Values
	}

	rec := array.NewRecordBatch(arrow.NewSchema(fields, nil), arrays, rows)
	defer rec.Release()
	return New(id, seq, rec)
}

// ID returns the segment identifier.
func (s *Segment) ID() string { return s.id }

// Seq returns the write order of the segment within its symbol.
func (s *Segment) Seq() int { return s.seq }

// NumRows returns the row count shared by every column.
func (s *Segment) NumRows() int { return int(s.record.NumRows()) }

// Schema returns the declared types of the columns present in the segment.
func (s *Segment) Schema() *column.Schema { return s.schema }

// Column returns the named column, or false when the segment lacks it.
// The returned column borrows the segment's buffer and is valid while the
// segment is retained.
func (s *Segment) Column(name string) (*column.Column, bool) {
	i := s.schema.Index(name)
	if i < 0 {
		return nil, false
	}
	f := s.schema.Field(i)
	return &column.Column{Name: f.Name, Type: f.Type, Values: s.record.Column(i)}, true
}

// Record returns the underlying Arrow record without retaining it.
func (s *Segment) Record() arrow.RecordBatch { return s.record }

// Retain increments the reference count.
func (s *Segment) Retain() { s.record.Retain() }

// Release decrements the reference count.
func (s *Segment) Release() { s.record.Release() }

func (s *Segment) String() string {
	return fmt.Sprintf("segment %s #%d (%d rows, %s)", s.id, s.seq, s.NumRows(), s.schema)
}
