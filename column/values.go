package column

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// TrimPadding returns the logical value of a fixed-width string: the bytes
// with trailing NUL padding removed.
func TrimPadding(b []byte) []byte {
	return bytes.TrimRight(b, "\x00")
}

// Int64s returns an accessor over a signed integer array, or an unsigned
// array narrower than 64 bits.
func Int64s(arr arrow.Array) (func(int) int64, error) {
	switch a := arr.(type) {
	case *array.Int8:
		return func(i int) int64 { return int64(a.Value(i)) }, nil
	case *array.Int16:
		return func(i int) int64 { return int64(a.Value(i)) }, nil
	case *array.Int32:
		return func(i int) int64 { return int64(a.Value(i)) }, nil
	case *array.Int64:
		return a.Value, nil
	case *array.Uint8:
		return func(i int) int64 { return int64(a.Value(i)) }, nil
	case *array.Uint16:
		return func(i int) int64 { return int64(a.Value(i)) }, nil
	case *array.Uint32:
		return func(i int) int64 { return int64(a.Value(i)) }, nil
	}
	return nil, &UnsupportedTypeError{DataType: arr.DataType()}
}

// Uint64s returns an accessor over an unsigned integer array.
func Uint64s(arr arrow.Array) (func(int) uint64, error) {
	switch a := arr.(type) {
	case *array.Uint8:
		return func(i int) uint64 { return uint64(a.Value(i)) }, nil
	case *array.Uint16:
		return func(i int) uint64 { return uint64(a.Value(i)) }, nil
	case *array.Uint32:
		return func(i int) uint64 { return uint64(a.Value(i)) }, nil
	case *array.Uint64:
		return a.Value, nil
	}
	return nil, &UnsupportedTypeError{DataType: arr.DataType()}
}

// Float64s returns an accessor over any numeric array.
func Float64s(arr arrow.Array) (func(int) float64, error) {
	switch a := arr.(type) {
	case *array.Float32:
		return func(i int) float64 { return float64(a.Value(i)) }, nil
	case *array.Float64:
		return a.Value, nil
	case *array.Uint64:
		return func(i int) float64 { return float64(a.Value(i)) }, nil
	}
	get, err := Int64s(arr)
	if err != nil {
		return nil, err
	}
	return func(i int) float64 { return float64(get(i)) }, nil
}

// Strings returns an accessor yielding the logical string value of a
// fixed-width or variable-width string array.
func Strings(arr arrow.Array) (func(int) string, error) {
	switch a := arr.(type) {
	case *array.String:
		return a.Value, nil
	case *array.FixedSizeBinary:
		return func(i int) string { return string(TrimPadding(a.Value(i))) }, nil
	}
	return nil, &UnsupportedTypeError{DataType: arr.DataType()}
}

// Bools returns an accessor over a boolean array.
func Bools(arr arrow.Array) (func(int) bool, error) {
	if a, ok := arr.(*array.Boolean); ok {
		return a.Value, nil
	}
	return nil, &UnsupportedTypeError{DataType: arr.DataType()}
}
