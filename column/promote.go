package column

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Promote converts arr from its declared type to the wider type to.
// The result is a new array owned by the caller (Release it). When from and
// to are identical, arr is retained and returned as is.
//
// Promotion never narrows: to must be Widen(from, to), otherwise
// *IncompatibleTypesError is returned. Nulls are preserved.
func Promote(mem memory.Allocator, arr arrow.Array, from, to Type) (arrow.Array, error) {
	if from == to {
		arr.Retain()
		return arr, nil
	}
	if w, err := Widen(from, to); err != nil || w != to {
		return nil, &IncompatibleTypesError{Left: from, Right: to}
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	switch to.Kind {
	case KindInt:
		get, err := Int64s(arr)
		if err != nil {
			return nil, err
		}
		switch to.Width {
		case 2:
			return build(array.NewInt16Builder(mem), arr, func(i int) int16 { return int16(get(i)) }), nil
		case 4:
			return build(array.NewInt32Builder(mem), arr, func(i int) int32 { return int32(get(i)) }), nil
		case 8:
			return build(array.NewInt64Builder(mem), arr, get), nil
		}

	case KindUint:
		get, err := Uint64s(arr)
		if err != nil {
			return nil, err
		}
		switch to.Width {
		case 2:
			return build(array.NewUint16Builder(mem), arr, func(i int) uint16 { return uint16(get(i)) }), nil
		case 4:
			return build(array.NewUint32Builder(mem), arr, func(i int) uint32 { return uint32(get(i)) }), nil
		case 8:
			return build(array.NewUint64Builder(mem), arr, get), nil
		}

	case KindFloat:
		get, err := Float64s(arr)
		if err != nil {
			return nil, err
		}
		if to.Width == 4 {
			return build(array.NewFloat32Builder(mem), arr, func(i int) float32 { return float32(get(i)) }), nil
		}
		return build(array.NewFloat64Builder(mem), arr, get), nil

	case KindFixedString:
		src, ok := arr.(*array.FixedSizeBinary)
		if !ok {
			return nil, &UnsupportedTypeError{DataType: arr.DataType()}
		}
		b := array.NewFixedSizeBinaryBuilder(mem, to.ToArrow().(*arrow.FixedSizeBinaryType))
		scratch := make([]byte, to.Width)
		return build(b, arr, func(i int) []byte {
			clear(scratch)
			copy(scratch, src.Value(i))
			return scratch
		}), nil

	case KindString:
		get, err := Strings(arr)
		if err != nil {
			return nil, err
		}
		return build(array.NewStringBuilder(mem), arr, get), nil
	}

	return nil, &IncompatibleTypesError{Left: from, Right: to}
}

// appender is the subset of typed Arrow builders used by build.
type appender[T any] interface {
	array.Builder
	Append(T)
}

// build fills b with at(i) for every non-null row of src and releases b.
func build[T any, B appender[T]](b B, src arrow.Array, at func(int) T) arrow.Array {
	defer b.Release()

	n := src.Len()
	b.Reserve(n)
	for i := 0; i < n; i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(at(i))
	}
	return b.NewArray()
}
