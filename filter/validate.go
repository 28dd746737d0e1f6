package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hugr-lab/segstore/column"
)

// Validate checks that expr is a well-formed predicate: every node is a
// supported kind, every literal has a column type and operators are applied
// to operands they support. A nil expression is valid and selects all rows.
//
// Column existence and column types are not checked here; both are resolved
// per segment during evaluation.
func Validate(expr Expression) error {
	if expr == nil {
		return nil
	}

	switch ex := expr.(type) {
	case *ComparisonExpression:
		return validateComparison(ex)

	case *MembershipExpression:
		return validateMembership(ex)

	case *ConjunctionExpression:
		if ex.Type() != TypeConjunctionAnd && ex.Type() != TypeConjunctionOr {
			return &UnsupportedOperatorError{Op: ex.Type()}
		}
		if len(ex.Children) == 0 {
			return fmt.Errorf("%w: %s without children", ErrInvalidExpression, ex.Type())
		}
		for i, child := range ex.Children {
			if child == nil {
				return fmt.Errorf("%w: %s child %d is nil", ErrInvalidExpression, ex.Type(), i)
			}
			if err := Validate(child); err != nil {
				return err
			}
		}
		return nil

	case *NotExpression:
		if ex.Child == nil {
			return fmt.Errorf("%w: NOT without operand", ErrInvalidExpression)
		}
		return Validate(ex.Child)

	case *ColumnRefExpression, *ConstantExpression:
		return fmt.Errorf("%w: %s is an operand, not a predicate", ErrInvalidExpression, expr.Class())
	}

	return fmt.Errorf("%w: unknown expression %T", ErrInvalidExpression, expr)
}

func validateComparison(c *ComparisonExpression) error {
	if !c.Type().IsComparison() {
		return &UnsupportedOperatorError{Op: c.Type()}
	}
	if err := validateOperand(c.Left); err != nil {
		return err
	}
	if err := validateOperand(c.Right); err != nil {
		return err
	}

	lc, lok := c.Left.(*ConstantExpression)
	rc, rok := c.Right.(*ConstantExpression)
	switch {
	case lok && rok:
		if !lc.Value.Type.Comparable(rc.Value.Type) {
			return &column.IncompatibleTypesError{Left: lc.Value.Type, Right: rc.Value.Type}
		}
		if c.Type().IsOrdering() && lc.Value.Type.Kind == column.KindBool {
			return &UnsupportedOperatorError{Op: c.Type(), Type: lc.Value.Type}
		}
	case lok:
		return validateLiteralOperator(c.Type(), c.Right.(*ColumnRefExpression).Name, lc.Value)
	case rok:
		return validateLiteralOperator(c.Type(), c.Left.(*ColumnRefExpression).Name, rc.Value)
	}
	return nil
}

func validateLiteralOperator(op ExpressionType, name string, v Value) error {
	if op.IsOrdering() && v.Type.Kind == column.KindBool {
		return &UnsupportedOperatorError{Op: op, Column: name, Type: v.Type}
	}
	return nil
}

func validateOperand(e Expression) error {
	switch op := e.(type) {
	case *ColumnRefExpression:
		if op == nil {
			return fmt.Errorf("%w: nil column operand", ErrInvalidExpression)
		}
		if op.Name == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidExpression)
		}
		return nil
	case *ConstantExpression:
		if op == nil {
			return fmt.Errorf("%w: nil literal operand", ErrInvalidExpression)
		}
		return validateValue(op.Value)
	case nil:
		return fmt.Errorf("%w: missing comparison operand", ErrInvalidExpression)
	}
	return fmt.Errorf("%w: comparison operand must be a column or a literal, got %s", ErrInvalidExpression, e.Class())
}

func validateMembership(m *MembershipExpression) error {
	if m.Type() != TypeCompareIn && m.Type() != TypeCompareNotIn {
		return &UnsupportedOperatorError{Op: m.Type()}
	}
	if m.Column == nil {
		return fmt.Errorf("%w: %s without column", ErrInvalidExpression, m.Type())
	}
	if err := validateOperand(m.Column); err != nil {
		return err
	}
	for i, v := range m.Values {
		if err := validateValue(v); err != nil {
			return err
		}
		if i > 0 && !m.Values[0].Type.Comparable(v.Type) {
			return &column.IncompatibleTypesError{Column: m.Column.Name, Left: m.Values[0].Type, Right: v.Type}
		}
	}
	return nil
}

func validateValue(v Value) error {
	if !v.IsValid() {
		return &UnsupportedLiteralError{Value: v.Data}
	}
	var ok bool
	switch v.Type.Kind {
	case column.KindInt:
		_, ok = v.Data.(int64)
	case column.KindUint:
		_, ok = v.Data.(uint64)
	case column.KindFloat:
		_, ok = v.Data.(float64)
	case column.KindFixedString, column.KindString:
		_, ok = v.Data.(string)
	case column.KindBool:
		_, ok = v.Data.(bool)
	}
	if !ok {
		return &UnsupportedLiteralError{Value: v.Data}
	}
	return nil
}

// Columns returns the sorted, de-duplicated names of every column expr
// references.
func Columns(expr Expression) []string {
	var names []string
	walk(expr, func(c *ColumnRefExpression) {
		names = append(names, c.Name)
	})
	slices.Sort(names)
	return slices.Compact(names)
}

func walk(expr Expression, fn func(*ColumnRefExpression)) {
	switch ex := expr.(type) {
	case *ColumnRefExpression:
		fn(ex)
	case *ComparisonExpression:
		walk(ex.Left, fn)
		walk(ex.Right, fn)
	case *MembershipExpression:
		if ex.Column != nil {
			fn(ex.Column)
		}
	case *ConjunctionExpression:
		for _, child := range ex.Children {
			walk(child, fn)
		}
	case *NotExpression:
		walk(ex.Child, fn)
	}
}

// String renders expr in a compact, human readable form, e.g.
//
//	(a < 5 AND b IN ("x", "y"))
func String(expr Expression) string {
	var sb strings.Builder
	writeExpr(&sb, expr)
	return sb.String()
}

var operatorSymbols = map[ExpressionType]string{
	TypeCompareEqual:              "==",
	TypeCompareNotEqual:           "!=",
	TypeCompareLessThan:           "<",
	TypeCompareLessThanOrEqual:    "<=",
	TypeCompareGreaterThan:        ">",
	TypeCompareGreaterThanOrEqual: ">=",
}

func writeExpr(sb *strings.Builder, expr Expression) {
	switch ex := expr.(type) {
	case nil:
		sb.WriteString("<all>")
	case *ColumnRefExpression:
		sb.WriteString(ex.Name)
	case *ConstantExpression:
		sb.WriteString(formatValue(ex.Value))
	case *ComparisonExpression:
		writeExpr(sb, ex.Left)
		sb.WriteString(" ")
		if sym, ok := operatorSymbols[ex.Type()]; ok {
			sb.WriteString(sym)
		} else {
			sb.WriteString(string(ex.Type()))
		}
		sb.WriteString(" ")
		writeExpr(sb, ex.Right)
	case *MembershipExpression:
		if ex.Column != nil {
			sb.WriteString(ex.Column.Name)
		}
		if ex.Negated() {
			sb.WriteString(" NOT IN (")
		} else {
			sb.WriteString(" IN (")
		}
		for i, v := range ex.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(formatValue(v))
		}
		sb.WriteString(")")
	case *ConjunctionExpression:
		op := " AND "
		if ex.Type() == TypeConjunctionOr {
			op = " OR "
		}
		sb.WriteString("(")
		for i, child := range ex.Children {
			if i > 0 {
				sb.WriteString(op)
			}
			writeExpr(sb, child)
		}
		sb.WriteString(")")
	case *NotExpression:
		sb.WriteString("NOT ")
		writeExpr(sb, ex.Child)
	default:
		fmt.Fprintf(sb, "<%T>", expr)
	}
}

func formatValue(v Value) string {
	switch d := v.Data.(type) {
	case string:
		return strconv.Quote(d)
	case float64:
		return strconv.FormatFloat(d, 'g', -1, 64)
	default:
		return fmt.Sprint(d)
	}
}
