package filter

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/segstore/column"
)

var (
	// ErrInvalidExpression indicates a structurally malformed expression tree.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrUnsupportedOperator is matched by every *UnsupportedOperatorError.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedLiteral is matched by every *UnsupportedLiteralError.
	ErrUnsupportedLiteral = errors.New("unsupported literal")
)

// UnsupportedOperatorError indicates an operator applied to an operand kind
// it does not support, such as ordering comparisons on booleans.
type UnsupportedOperatorError struct {
	Op ExpressionType
	// Column is the offending column, empty for literal operands.
	Column string
	Type   column.Type
}

func (e *UnsupportedOperatorError) Error() string {
	msg := "unsupported operator " + string(e.Op)
	if e.Column != "" {
		msg += fmt.Sprintf(" for column %q", e.Column)
	}
	if e.Type.IsValid() {
		msg += " of type " + e.Type.String()
	}
	return msg
}

// Is makes errors.Is(err, ErrUnsupportedOperator) succeed.
func (e *UnsupportedOperatorError) Is(target error) bool {
	return target == ErrUnsupportedOperator
}

// UnsupportedLiteralError indicates a Go value that has no column type.
type UnsupportedLiteralError struct {
	Value any
}

func (e *UnsupportedLiteralError) Error() string {
	return fmt.Sprintf("unsupported literal %v of type %T", e.Value, e.Value)
}

// Is makes errors.Is(err, ErrUnsupportedLiteral) succeed.
func (e *UnsupportedLiteralError) Is(target error) bool {
	return target == ErrUnsupportedLiteral
}
