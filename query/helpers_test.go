package query

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/segment"
)

// colOf wraps a freshly built array as a column and releases the builder's
// reference.
func colOf(t testing.TB, name string, arr arrow.Array) *column.Column {
	t.Helper()
	defer arr.Release()
	c, err := column.New(name, arr)
	require.NoError(t, err)
	return c
}

func int64Col(t testing.TB, mem memory.Allocator, name string, vs []int64, valid []bool) *column.Column {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func int32Col(t testing.TB, mem memory.Allocator, name string, vs []int32, valid []bool) *column.Column {
	b := array.NewInt32Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func int8Col(t testing.TB, mem memory.Allocator, name string, vs []int8, valid []bool) *column.Column {
	b := array.NewInt8Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func uint8Col(t testing.TB, mem memory.Allocator, name string, vs []uint8, valid []bool) *column.Column {
	b := array.NewUint8Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func uint16Col(t testing.TB, mem memory.Allocator, name string, vs []uint16, valid []bool) *column.Column {
	b := array.NewUint16Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func uint64Col(t testing.TB, mem memory.Allocator, name string, vs []uint64, valid []bool) *column.Column {
	b := array.NewUint64Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func float32Col(t testing.TB, mem memory.Allocator, name string, vs []float32, valid []bool) *column.Column {
	b := array.NewFloat32Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func float64Col(t testing.TB, mem memory.Allocator, name string, vs []float64, valid []bool) *column.Column {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

func stringCol(t testing.TB, mem memory.Allocator, name string, vs []string, valid []bool) *column.Column {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

// fixedCol builds a fixed-width string column, NUL padding each value.
func fixedCol(t testing.TB, mem memory.Allocator, name string, width int, vs []string, valid []bool) *column.Column {
	b := array.NewFixedSizeBinaryBuilder(mem, &arrow.FixedSizeBinaryType{ByteWidth: width})
	defer b.Release()
	for i, v := range vs {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		buf := make([]byte, width)
		copy(buf, v)
		b.Append(buf)
	}
	return colOf(t, name, b.NewArray())
}

func boolCol(t testing.TB, mem memory.Allocator, name string, vs []bool, valid []bool) *column.Column {
	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.AppendValues(vs, valid)
	return colOf(t, name, b.NewArray())
}

// newSegment builds a segment from cols and releases them; the caller owns
// the segment.
func newSegment(t testing.TB, id string, seq int, cols ...*column.Column) *segment.Segment {
	t.Helper()
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	seg, err := segment.FromColumns(id, seq, cols...)
	require.NoError(t, err)
	return seg
}

func releaseAll(segs []*segment.Segment) {
	for _, s := range segs {
		s.Release()
	}
}

func int64s(t testing.TB, tbl *Table, name string) []int64 {
	t.Helper()
	c, ok := tbl.Column(name)
	require.True(t, ok, "column %s missing", name)
	get, err := column.Int64s(c.Values)
	require.NoError(t, err)
	out := make([]int64, c.Len())
	for i := range out {
		out[i] = get(i)
	}
	return out
}

func float64s(t testing.TB, tbl *Table, name string) []float64 {
	t.Helper()
	c, ok := tbl.Column(name)
	require.True(t, ok, "column %s missing", name)
	get, err := column.Float64s(c.Values)
	require.NoError(t, err)
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = get(i)
	}
	return out
}

func strs(t testing.TB, tbl *Table, name string) []string {
	t.Helper()
	c, ok := tbl.Column(name)
	require.True(t, ok, "column %s missing", name)
	get, err := column.Strings(c.Values)
	require.NoError(t, err)
	out := make([]string, c.Len())
	for i := range out {
		out[i] = get(i)
	}
	return out
}

func nulls(t testing.TB, tbl *Table, name string) []bool {
	t.Helper()
	c, ok := tbl.Column(name)
	require.True(t, ok, "column %s missing", name)
	out := make([]bool, c.Len())
	for i := range out {
		out[i] = c.Values.IsNull(i)
	}
	return out
}
