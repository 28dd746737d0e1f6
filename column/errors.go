package column

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
)

// Sentinel errors for type handling.
var (
	// ErrIncompatibleTypes is matched by every *IncompatibleTypesError.
	ErrIncompatibleTypes = errors.New("incompatible column types")

	// ErrUnsupportedType is matched by every *UnsupportedTypeError.
	ErrUnsupportedType = errors.New("unsupported column type")

	// ErrInvalidType indicates an illegal kind/width combination.
	ErrInvalidType = errors.New("invalid column type")

	// ErrLengthMismatch indicates columns of one segment or table differ in length.
	ErrLengthMismatch = errors.New("column length mismatch")
)

// IncompatibleTypesError indicates two declared types have no common type
// they can both be represented in without loss.
type IncompatibleTypesError struct {
	// Column is the offending column name, empty when not yet known.
	Column string
	Left   Type
	Right  Type
}

func (e *IncompatibleTypesError) Error() string {
	msg := "incompatible column types " + e.Left.String() + " and " + e.Right.String()
	if e.Column != "" {
		msg += " for column " + quote(e.Column)
	}
	return msg
}

// Is makes errors.Is(err, ErrIncompatibleTypes) succeed.
func (e *IncompatibleTypesError) Is(target error) bool {
	return target == ErrIncompatibleTypes
}

// ForColumn returns a copy of the error attributed to the named column.
func (e *IncompatibleTypesError) ForColumn(name string) *IncompatibleTypesError {
	cp := *e
	cp.Column = name
	return &cp
}

// UnsupportedTypeError indicates an Arrow type with no column type mapping.
type UnsupportedTypeError struct {
	Column   string
	DataType arrow.DataType
}

func (e *UnsupportedTypeError) Error() string {
	name := "<nil>"
	if e.DataType != nil {
		name = e.DataType.String()
	}
	msg := "unsupported column type " + name
	if e.Column != "" {
		msg += " for column " + quote(e.Column)
	}
	return msg
}

// Is makes errors.Is(err, ErrUnsupportedType) succeed.
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

func quote(s string) string { return `"` + s + `"` }
