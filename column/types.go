// Package column defines the typed column model shared by segments, the
// predicate evaluator and query results.
//
// A column type is a closed tagged variant (Kind plus byte Width). Every
// variant maps to exactly one Apache Arrow data type, which is the physical
// buffer representation used throughout the module:
//
//	Int(1|2|4|8)      -> int8 .. int64
//	Uint(1|2|4|8)     -> uint8 .. uint64
//	Float(4|8)        -> float32, float64
//	FixedString(w)    -> fixed_size_binary[w] (NUL padded)
//	String()          -> utf8
//	Bool()            -> bool
package column

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind identifies the family of a column type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindFixedString
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindFixedString:
		return "fixed_string"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Type is a column type declaration. Width is in bytes; it is zero for
// variable-width strings.
type Type struct {
	Kind  Kind
	Width int
}

// Int returns a signed integer type of the given byte width.
func Int(width int) Type { return Type{Kind: KindInt, Width: width} }

// Uint returns an unsigned integer type of the given byte width.
func Uint(width int) Type { return Type{Kind: KindUint, Width: width} }

// Float returns a floating-point type of the given byte width.
func Float(width int) Type { return Type{Kind: KindFloat, Width: width} }

// FixedString returns a fixed-width string type of the given byte width.
func FixedString(width int) Type { return Type{Kind: KindFixedString, Width: width} }

// String returns the variable-width string type.
func String() Type { return Type{Kind: KindString} }

// Bool returns the boolean type.
func Bool() Type { return Type{Kind: KindBool, Width: 1} }

// Validate reports whether the width is legal for the kind.
func (t Type) Validate() error {
	switch t.Kind {
	case KindInt, KindUint:
		switch t.Width {
		case 1, 2, 4, 8:
			return nil
		}
	case KindFloat:
		if t.Width == 4 || t.Width == 8 {
			return nil
		}
	case KindFixedString:
		if t.Width > 0 {
			return nil
		}
	case KindString:
		if t.Width == 0 {
			return nil
		}
	case KindBool:
		if t.Width == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s width %d", ErrInvalidType, t.Kind, t.Width)
}

// IsValid is shorthand for Validate() == nil.
func (t Type) IsValid() bool { return t.Validate() == nil }

// IsNumeric returns true for integer and floating-point types.
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case KindInt, KindUint, KindFloat:
		return true
	}
	return false
}

// IsInteger returns true for signed and unsigned integer types.
func (t Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindUint
}

// IsStringLike returns true for fixed-width and variable-width strings.
func (t Type) IsStringLike() bool {
	return t.Kind == KindFixedString || t.Kind == KindString
}

// Comparable reports whether values of t and o can be compared: both
// numeric, both string-like, or both boolean.
func (t Type) Comparable(o Type) bool {
	switch {
	case t.IsNumeric():
		return o.IsNumeric()
	case t.IsStringLike():
		return o.IsStringLike()
	case t.Kind == KindBool:
		return o.Kind == KindBool
	}
	return false
}

// Identical reports whether kind and width both match.
func (t Type) Identical(o Type) bool { return t == o }

func (t Type) String() string {
	switch t.Kind {
	case KindInt, KindUint, KindFloat:
		return t.Kind.String() + strconv.Itoa(t.Width*8)
	case KindFixedString:
		return "fixed_string(" + strconv.Itoa(t.Width) + ")"
	case KindString, KindBool:
		return t.Kind.String()
	}
	return "invalid"
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "string":
		return String(), nil
	case "bool":
		return Bool(), nil
	}

	if rest, ok := strings.CutPrefix(s, "fixed_string("); ok {
		w, err := strconv.Atoi(strings.TrimSuffix(rest, ")"))
		if err != nil || !strings.HasSuffix(rest, ")") {
			return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
		}
		t := FixedString(w)
		return t, t.Validate()
	}

	for _, k := range []Kind{KindUint, KindInt, KindFloat} {
		rest, ok := strings.CutPrefix(s, k.String())
		if !ok {
			continue
		}
		bits, err := strconv.Atoi(rest)
		if err != nil || bits%8 != 0 {
			return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
		}
		t := Type{Kind: k, Width: bits / 8}
		return t, t.Validate()
	}

	return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// ToArrow returns the Arrow data type backing t.
// Returns nil for invalid types.
func (t Type) ToArrow() arrow.DataType {
	switch t.Kind {
	case KindInt:
		switch t.Width {
		case 1:
			return arrow.PrimitiveTypes.Int8
		case 2:
			return arrow.PrimitiveTypes.Int16
		case 4:
			return arrow.PrimitiveTypes.Int32
		case 8:
			return arrow.PrimitiveTypes.Int64
		}
	case KindUint:
		switch t.Width {
		case 1:
			return arrow.PrimitiveTypes.Uint8
		case 2:
			return arrow.PrimitiveTypes.Uint16
		case 4:
			return arrow.PrimitiveTypes.Uint32
		case 8:
			return arrow.PrimitiveTypes.Uint64
		}
	case KindFloat:
		switch t.Width {
		case 4:
			return arrow.PrimitiveTypes.Float32
		case 8:
			return arrow.PrimitiveTypes.Float64
		}
	case KindFixedString:
		if t.Width > 0 {
			return &arrow.FixedSizeBinaryType{ByteWidth: t.Width}
		}
	case KindString:
		return arrow.BinaryTypes.String
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	}
	return nil
}

// FromArrow maps an Arrow data type to its column type.
// Returns *UnsupportedTypeError for Arrow types outside the model.
func FromArrow(dt arrow.DataType) (Type, error) {
	if dt == nil {
		return Type{}, &UnsupportedTypeError{}
	}
	switch dt.ID() {
	case arrow.INT8:
		return Int(1), nil
	case arrow.INT16:
		return Int(2), nil
	case arrow.INT32:
		return Int(4), nil
	case arrow.INT64:
		return Int(8), nil
	case arrow.UINT8:
		return Uint(1), nil
	case arrow.UINT16:
		return Uint(2), nil
	case arrow.UINT32:
		return Uint(4), nil
	case arrow.UINT64:
		return Uint(8), nil
	case arrow.FLOAT32:
		return Float(4), nil
	case arrow.FLOAT64:
		return Float(8), nil
	case arrow.FIXED_SIZE_BINARY:
		return FixedString(dt.(*arrow.FixedSizeBinaryType).ByteWidth), nil
	case arrow.STRING:
		return String(), nil
	case arrow.BOOL:
		return Bool(), nil
	}
	return Type{}, &UnsupportedTypeError{DataType: dt}
}
