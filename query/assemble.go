package query

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/segstore/column"
)

// Assemble concatenates the selected rows of every segment result into one
// table typed by schema's output schema.
//
// Rows are emitted in segment index order, then in row order within each
// segment; results may be passed in any order. A column a segment lacks is
// filled with nulls for that segment's selected rows. When no row is
// selected the table has zero rows and the full output schema.
//
// Assemble does not take ownership of results.
func Assemble(mem memory.Allocator, results []*SegmentResult, schema *UnifiedSchema) (*Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	ordered := slices.Clone(results)
	slices.SortFunc(ordered, func(a, b *SegmentResult) int { return cmp.Compare(a.Index, b.Index) })

	total := 0
	var warnings []AbsentColumnWarning
	for _, r := range ordered {
		total += r.Selected()
		warnings = append(warnings, r.Warnings...)
	}

	out := schema.Output()
	arrays := make([]arrow.Array, 0, out.Len())
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	for i := 0; i < out.Len(); i++ {
		f := out.Field(i)
		arr, err := assembleColumn(mem, f, ordered, total)
		if err != nil {
			return nil, fmt.Errorf("assemble column %q: %w", f.Name, err)
		}
		arrays = append(arrays, arr)
	}

	rec := array.NewRecordBatch(out.ToArrow(), arrays, int64(total))
	return &Table{schema: out, record: rec, warnings: warnings}, nil
}

func assembleColumn(mem memory.Allocator, f column.Field, results []*SegmentResult, total int) (arrow.Array, error) {
	b := array.NewBuilder(mem, f.Type.ToArrow())
	defer b.Release()
	b.Reserve(total)

	for _, r := range results {
		n := r.Selected()
		if n == 0 {
			continue
		}
		col, ok := r.Columns[f.Name]
		if !ok {
			b.AppendNulls(n)
			continue
		}
		if col.Type != f.Type {
			return nil, fmt.Errorf("segment %s holds %s, expected %s: %w",
				r.SegmentID, col.Type, f.Type, column.ErrInvalidType)
		}
		if err := appendSelected(b, col.Values, r.Mask); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}

// appendSelected appends the rows of src selected by m to b. src and b
// must have the same Arrow type.
func appendSelected(b array.Builder, src arrow.Array, m *Mask) error {
	switch bb := b.(type) {
	case *array.Int8Builder:
		appendRows[int8](bb, src.(*array.Int8), m)
	case *array.Int16Builder:
		appendRows[int16](bb, src.(*array.Int16), m)
	case *array.Int32Builder:
		appendRows[int32](bb, src.(*array.Int32), m)
	case *array.Int64Builder:
		appendRows[int64](bb, src.(*array.Int64), m)
	case *array.Uint8Builder:
		appendRows[uint8](bb, src.(*array.Uint8), m)
	case *array.Uint16Builder:
		appendRows[uint16](bb, src.(*array.Uint16), m)
	case *array.Uint32Builder:
		appendRows[uint32](bb, src.(*array.Uint32), m)
	case *array.Uint64Builder:
		appendRows[uint64](bb, src.(*array.Uint64), m)
	case *array.Float32Builder:
		appendRows[float32](bb, src.(*array.Float32), m)
	case *array.Float64Builder:
		appendRows[float64](bb, src.(*array.Float64), m)
	case *array.StringBuilder:
		appendRows[string](bb, src.(*array.String), m)
	case *array.FixedSizeBinaryBuilder:
		appendRows[[]byte](bb, src.(*array.FixedSizeBinary), m)
	case *array.BooleanBuilder:
		appendRows[bool](bb, src.(*array.Boolean), m)
	default:
		return &column.UnsupportedTypeError{DataType: src.DataType()}
	}
	return nil
}

type valuer[T any] interface {
	arrow.Array
	Value(int) T
}

func appendRows[T any](b appender[T], src valuer[T], m *Mask) {
	for i := range m.Rows() {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(src.Value(i))
	}
}

type appender[T any] interface {
	AppendNull()
	Append(T)
}
