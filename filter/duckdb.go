package filter

import (
	"math"
	"strconv"
	"strings"

	"github.com/hugr-lab/segstore/column"
)

// DuckDBEncoder encodes predicates to DuckDB SQL.
//
// The output reproduces the evaluator's two-valued null semantics rather
// than SQL's three-valued logic: every leaf is wrapped in COALESCE so that a
// NULL operand makes =, <, <=, >, >= and IN false, and makes <> and NOT IN
// true. NOT and the conjunctions then combine plain booleans. An empty IN
// list encodes as FALSE and an empty NOT IN list as TRUE.
type DuckDBEncoder struct {
	opts *EncoderOptions
}

var _ Encoder = (*DuckDBEncoder)(nil)

// NewDuckDBEncoder creates a new DuckDB SQL encoder.
// If opts is nil, default options are used.
func NewDuckDBEncoder(opts *EncoderOptions) *DuckDBEncoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &DuckDBEncoder{opts: opts}
}

// Encode converts a predicate to a DuckDB boolean expression.
// A nil predicate encodes as TRUE. Returns empty string if any node is
// unsupported, since a partial encoding would select different rows.
func (e *DuckDBEncoder) Encode(expr Expression) string {
	if expr == nil {
		return "TRUE"
	}

	switch ex := expr.(type) {
	case *ComparisonExpression:
		return e.encodeComparison(ex)
	case *MembershipExpression:
		return e.encodeIn(ex)
	case *ConjunctionExpression:
		return e.encodeConjunction(ex)
	case *NotExpression:
		child := e.Encode(ex.Child)
		if child == "" {
			return ""
		}
		return "(NOT " + child + ")"
	default:
		return ""
	}
}

// encodeComparison encodes a comparison expression.
func (e *DuckDBEncoder) encodeComparison(c *ComparisonExpression) string {
	left := e.encodeOperand(c.Left)
	right := e.encodeOperand(c.Right)
	if left == "" || right == "" {
		return ""
	}

	var op string
	switch c.Type() {
	case TypeCompareEqual:
		op = " = "
	case TypeCompareNotEqual:
		return coalesce(left+" <> "+right, true)
	case TypeCompareLessThan:
		op = " < "
	case TypeCompareGreaterThan:
		op = " > "
	case TypeCompareLessThanOrEqual:
		op = " <= "
	case TypeCompareGreaterThanOrEqual:
		op = " >= "
	default:
		return ""
	}
	return coalesce(left+op+right, false)
}

// encodeIn encodes IN/NOT IN expressions.
func (e *DuckDBEncoder) encodeIn(m *MembershipExpression) string {
	if m.Column == nil {
		return ""
	}
	if len(m.Values) == 0 {
		return strings.ToUpper(strconv.FormatBool(m.Negated()))
	}

	left := e.encodeColumnRef(m.Column)
	values := make([]string, 0, len(m.Values))
	for _, v := range m.Values {
		encoded := e.formatValue(v)
		if encoded == "" {
			return ""
		}
		values = append(values, encoded)
	}

	list := "(" + strings.Join(values, ", ") + ")"
	if m.Negated() {
		return coalesce(left+" NOT IN "+list, true)
	}
	return coalesce(left+" IN "+list, false)
}

// encodeConjunction encodes AND/OR conjunctions.
func (e *DuckDBEncoder) encodeConjunction(c *ConjunctionExpression) string {
	op := " AND "
	switch c.Type() {
	case TypeConjunctionAnd:
	case TypeConjunctionOr:
		op = " OR "
	default:
		return ""
	}

	parts := make([]string, 0, len(c.Children))
	for _, child := range c.Children {
		encoded := e.Encode(child)
		if encoded == "" {
			return ""
		}
		parts = append(parts, encoded)
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, op) + ")"
}

func (e *DuckDBEncoder) encodeOperand(expr Expression) string {
	switch op := expr.(type) {
	case *ColumnRefExpression:
		return e.encodeColumnRef(op)
	case *ConstantExpression:
		return e.formatValue(op.Value)
	}
	return ""
}

func (e *DuckDBEncoder) encodeColumnRef(c *ColumnRefExpression) string {
	return e.opts.column(c.Name)
}

// formatValue formats a Value as a SQL literal.
func (e *DuckDBEncoder) formatValue(v Value) string {
	if validateValue(v) != nil {
		return ""
	}

	switch v.Type.Kind {
	case column.KindBool:
		if v.Data.(bool) {
			return "TRUE"
		}
		return "FALSE"
	case column.KindInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case column.KindUint:
		return strconv.FormatUint(v.Data.(uint64), 10) + "::UBIGINT"
	case column.KindFloat:
		return formatFloatValue(v.Data.(float64))
	case column.KindFixedString, column.KindString:
		return quoteLiteral(v.Data.(string))
	}
	return ""
}

// formatFloatValue formats a floating-point value as a DOUBLE literal.
func formatFloatValue(f float64) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'::DOUBLE"
	case math.IsInf(f, 1):
		return "'Infinity'::DOUBLE"
	case math.IsInf(f, -1):
		return "'-Infinity'::DOUBLE"
	}
	return strconv.FormatFloat(f, 'g', -1, 64) + "::DOUBLE"
}

func coalesce(cond string, def bool) string {
	if def {
		return "COALESCE(" + cond + ", TRUE)"
	}
	return "COALESCE(" + cond + ", FALSE)"
}
