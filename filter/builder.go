package filter

import (
	"github.com/hugr-lab/segstore/column"
)

// Col returns a reference to the named column.
func Col(name string) *ColumnRefExpression {
	return &ColumnRefExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBoundColumnRef, ExprType: TypeBoundColumnRef},
		Name:           name,
	}
}

// Lit wraps a Go value as a literal. It never panics: an unsupported Go
// type yields a constant that Validate rejects with *UnsupportedLiteralError.
//
// Supported literals and their column types:
//
//	int, int64 -> int64      int8/16/32 -> int8/16/32
//	uint, uint64 -> uint64   uint8/16/32 -> uint8/16/32
//	float32 -> float32       float64 -> float64
//	string -> string         bool -> bool
func Lit(v any) *ConstantExpression {
	val, err := NewValue(v)
	if err != nil {
		val = Value{Data: v}
	}
	return &ConstantExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBoundConstant, ExprType: TypeValueConstant},
		Value:          val,
	}
}

// NewValue converts a Go value to a typed literal.
func NewValue(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case int:
		return Value{Type: column.Int(8), Data: int64(x)}, nil
	case int8:
		return Value{Type: column.Int(1), Data: int64(x)}, nil
	case int16:
		return Value{Type: column.Int(2), Data: int64(x)}, nil
	case int32:
		return Value{Type: column.Int(4), Data: int64(x)}, nil
	case int64:
		return Value{Type: column.Int(8), Data: x}, nil
	case uint:
		return Value{Type: column.Uint(8), Data: uint64(x)}, nil
	case uint8:
		return Value{Type: column.Uint(1), Data: uint64(x)}, nil
	case uint16:
		return Value{Type: column.Uint(2), Data: uint64(x)}, nil
	case uint32:
		return Value{Type: column.Uint(4), Data: uint64(x)}, nil
	case uint64:
		return Value{Type: column.Uint(8), Data: x}, nil
	case float32:
		return Value{Type: column.Float(4), Data: float64(x)}, nil
	case float64:
		return Value{Type: column.Float(8), Data: x}, nil
	case string:
		return Value{Type: column.String(), Data: x}, nil
	case bool:
		return Value{Type: column.Bool(), Data: x}, nil
	}
	return Value{}, &UnsupportedLiteralError{Value: v}
}

// Set converts a typed slice to the variadic form accepted by IsIn and IsNotIn.
func Set[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// Compare builds a comparison. Each operand is either an Expression
// (normally a column reference or a literal) or a plain Go value, which is
// wrapped with Lit.
func Compare(op ExpressionType, left, right any) *ComparisonExpression {
	return &ComparisonExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBoundComparison, ExprType: op},
		Left:           operand(left),
		Right:          operand(right),
	}
}

func operand(v any) Expression {
	if e, ok := v.(Expression); ok {
		return e
	}
	return Lit(v)
}

// Lt builds c < v.
func (c *ColumnRefExpression) Lt(v any) *ComparisonExpression {
	return Compare(TypeCompareLessThan, c, v)
}

// Le builds c <= v.
func (c *ColumnRefExpression) Le(v any) *ComparisonExpression {
	return Compare(TypeCompareLessThanOrEqual, c, v)
}

// Gt builds c > v.
func (c *ColumnRefExpression) Gt(v any) *ComparisonExpression {
	return Compare(TypeCompareGreaterThan, c, v)
}

// Ge builds c >= v.
func (c *ColumnRefExpression) Ge(v any) *ComparisonExpression {
	return Compare(TypeCompareGreaterThanOrEqual, c, v)
}

// Eq builds c == v.
func (c *ColumnRefExpression) Eq(v any) *ComparisonExpression {
	return Compare(TypeCompareEqual, c, v)
}

// Ne builds c != v.
func (c *ColumnRefExpression) Ne(v any) *ComparisonExpression {
	return Compare(TypeCompareNotEqual, c, v)
}

// IsIn builds c IN (vs...). An empty set selects no rows.
func (c *ColumnRefExpression) IsIn(vs ...any) *MembershipExpression {
	return membership(TypeCompareIn, c, vs)
}

// IsNotIn builds c NOT IN (vs...). An empty set selects every row.
func (c *ColumnRefExpression) IsNotIn(vs ...any) *MembershipExpression {
	return membership(TypeCompareNotIn, c, vs)
}

func membership(op ExpressionType, c *ColumnRefExpression, vs []any) *MembershipExpression {
	values := make([]Value, len(vs))
	for i, v := range vs {
		values[i] = Lit(v).Value
	}
	return &MembershipExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBoundComparison, ExprType: op},
		Column:         c,
		Values:         values,
	}
}

// And builds left AND right.
func And(left, right Expression) *ConjunctionExpression {
	return conjunction(TypeConjunctionAnd, left, right)
}

// Or builds left OR right.
func Or(left, right Expression) *ConjunctionExpression {
	return conjunction(TypeConjunctionOr, left, right)
}

func conjunction(op ExpressionType, children ...Expression) *ConjunctionExpression {
	return &ConjunctionExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBoundConjunction, ExprType: op},
		Children:       children,
	}
}

// Not builds NOT e.
func Not(e Expression) *NotExpression {
	return &NotExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBoundOperator, ExprType: TypeOperatorNot},
		Child:          e,
	}
}
