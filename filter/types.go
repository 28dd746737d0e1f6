package filter

import "github.com/hugr-lab/segstore/column"

// ExpressionClass identifies the category of expression.
type ExpressionClass string

const (
	ClassBoundColumnRef   ExpressionClass = "BOUND_COLUMN_REF"
	ClassBoundConstant    ExpressionClass = "BOUND_CONSTANT"
	ClassBoundComparison  ExpressionClass = "BOUND_COMPARISON"
	ClassBoundConjunction ExpressionClass = "BOUND_CONJUNCTION"
	ClassBoundOperator    ExpressionClass = "BOUND_OPERATOR"
)

// ExpressionType identifies the specific operation type.
type ExpressionType string

const (
	// Comparison operators
	TypeCompareEqual              ExpressionType = "COMPARE_EQUAL"
	TypeCompareNotEqual           ExpressionType = "COMPARE_NOTEQUAL"
	TypeCompareLessThan           ExpressionType = "COMPARE_LESSTHAN"
	TypeCompareGreaterThan        ExpressionType = "COMPARE_GREATERTHAN"
	TypeCompareLessThanOrEqual    ExpressionType = "COMPARE_LESSTHANOREQUALTO"
	TypeCompareGreaterThanOrEqual ExpressionType = "COMPARE_GREATERTHANOREQUALTO"

	// Membership operators
	TypeCompareIn    ExpressionType = "COMPARE_IN"
	TypeCompareNotIn ExpressionType = "COMPARE_NOT_IN"

	// Conjunction operators
	TypeConjunctionAnd ExpressionType = "CONJUNCTION_AND"
	TypeConjunctionOr  ExpressionType = "CONJUNCTION_OR"

	// Unary operators
	TypeOperatorNot ExpressionType = "OPERATOR_NOT"

	// Operand types
	TypeValueConstant  ExpressionType = "VALUE_CONSTANT"
	TypeBoundColumnRef ExpressionType = "BOUND_COLUMN_REF"
)

// IsComparison reports whether t is one of the six binary comparison operators.
func (t ExpressionType) IsComparison() bool {
	switch t {
	case TypeCompareEqual, TypeCompareNotEqual,
		TypeCompareLessThan, TypeCompareLessThanOrEqual,
		TypeCompareGreaterThan, TypeCompareGreaterThanOrEqual:
		return true
	}
	return false
}

// IsOrdering reports whether t is <, <=, > or >=.
func (t ExpressionType) IsOrdering() bool {
	return t.IsComparison() && t != TypeCompareEqual && t != TypeCompareNotEqual
}

// Commute returns the operator that gives the same result with the operands
// swapped, so that "5 < x" can be evaluated as "x > 5".
func (t ExpressionType) Commute() ExpressionType {
	switch t {
	case TypeCompareLessThan:
		return TypeCompareGreaterThan
	case TypeCompareLessThanOrEqual:
		return TypeCompareGreaterThanOrEqual
	case TypeCompareGreaterThan:
		return TypeCompareLessThan
	case TypeCompareGreaterThanOrEqual:
		return TypeCompareLessThanOrEqual
	}
	return t
}

// Expression is the interface implemented by all filter expression types.
// Use type assertions or type switches to access specific expression data.
//
// Expressions are immutable once built. The same tree may be evaluated by
// many goroutines at once.
type Expression interface {
	// Class returns the expression class (e.g., BOUND_COMPARISON, BOUND_CONJUNCTION).
	Class() ExpressionClass

	// Type returns the specific expression type (e.g., COMPARE_EQUAL, CONJUNCTION_AND).
	Type() ExpressionType

	// expressionMarker is a marker method to prevent external implementation.
	expressionMarker()
}

// BaseExpression contains common fields for all expression types.
type BaseExpression struct {
	ExprClass ExpressionClass `json:"expression_class"`
	ExprType  ExpressionType  `json:"type"`
}

// Class returns the expression class.
func (b *BaseExpression) Class() ExpressionClass { return b.ExprClass }

// Type returns the expression type.
func (b *BaseExpression) Type() ExpressionType { return b.ExprType }

func (b *BaseExpression) expressionMarker() {}

// ColumnRefExpression represents a reference to a column by name.
// Binding is nominal: the column is looked up per segment at evaluation.
type ColumnRefExpression struct {
	BaseExpression
	Name string
}

// ConstantExpression represents a literal value.
type ConstantExpression struct {
	BaseExpression
	Value Value
}

// ComparisonExpression represents binary comparisons (=, <>, <, >, <=, >=).
// Each side is a *ColumnRefExpression or a *ConstantExpression.
type ComparisonExpression struct {
	BaseExpression
	Left  Expression
	Right Expression
}

// MembershipExpression represents IN / NOT IN against a finite value set.
type MembershipExpression struct {
	BaseExpression
	Column *ColumnRefExpression
	Values []Value
}

// Negated reports whether this is a NOT IN expression.
func (m *MembershipExpression) Negated() bool { return m.ExprType == TypeCompareNotIn }

// ConjunctionExpression represents AND/OR with one or more children.
type ConjunctionExpression struct {
	BaseExpression
	Children []Expression
}

// NotExpression represents logical negation.
type NotExpression struct {
	BaseExpression
	Child Expression
}

// Value is a typed literal. Data holds the normalized Go value for Type:
// int64 for signed integers, uint64 for unsigned integers, float64 for
// floats, string for both string encodings and bool for booleans.
//
// A Value whose Type is the zero Type carries an unsupported literal in
// Data; Validate reports it.
type Value struct {
	Type column.Type
	Data any
}

// IsValid reports whether v holds a supported literal.
func (v Value) IsValid() bool { return v.Type.IsValid() }
