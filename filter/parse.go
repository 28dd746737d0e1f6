package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hugr-lab/segstore/column"
)

// Parse decodes a predicate from its JSON wire form. Empty input (or the
// JSON literal null) yields a nil expression, which selects all rows.
//
// The result is structurally decoded only; call Validate before evaluating.
//
// Error conditions:
//   - Invalid JSON syntax
//   - Unknown expression class or type
//   - Literal values that do not match their declared type
func Parse(data []byte) (Expression, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("filter: invalid JSON")
	}

	expr, err := parseExpression(data)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return expr, nil
}

// rawExpression is used for two-phase parsing to determine expression class.
type rawExpression struct {
	ExpressionClass string `json:"expression_class"`
	Type            string `json:"type"`
}

// parseExpression parses a single expression from raw JSON.
func parseExpression(data json.RawMessage) (Expression, error) {
	var raw rawExpression
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	switch ExpressionClass(raw.ExpressionClass) {
	case ClassBoundComparison:
		switch ExpressionType(raw.Type) {
		case TypeCompareIn, TypeCompareNotIn:
			return parseMembershipExpression(data)
		}
		return parseComparisonExpression(data)
	case ClassBoundConjunction:
		return parseConjunctionExpression(data)
	case ClassBoundOperator:
		return parseOperatorExpression(data)
	case ClassBoundConstant:
		return parseConstantExpression(data)
	case ClassBoundColumnRef:
		return parseColumnRefExpression(data)
	}
	return nil, fmt.Errorf("%w: unknown expression class %q", ErrInvalidExpression, raw.ExpressionClass)
}

// rawComparison is the JSON structure for comparison expressions.
type rawComparison struct {
	Type  string          `json:"type"`
	Left  json.RawMessage `json:"left"`
	Right json.RawMessage `json:"right"`
}

func parseComparisonExpression(data json.RawMessage) (*ComparisonExpression, error) {
	var raw rawComparison
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid comparison expression: %w", err)
	}

	left, err := parseExpression(raw.Left)
	if err != nil {
		return nil, fmt.Errorf("invalid left operand: %w", err)
	}

	right, err := parseExpression(raw.Right)
	if err != nil {
		return nil, fmt.Errorf("invalid right operand: %w", err)
	}

	return Compare(ExpressionType(raw.Type), left, right), nil
}

// rawMembership is the JSON structure for IN / NOT IN expressions.
type rawMembership struct {
	Type   string          `json:"type"`
	Column json.RawMessage `json:"column"`
	Values []Value         `json:"values"`
}

func parseMembershipExpression(data json.RawMessage) (*MembershipExpression, error) {
	var raw rawMembership
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid membership expression: %w", err)
	}

	col, err := parseColumnRefExpression(raw.Column)
	if err != nil {
		return nil, fmt.Errorf("invalid membership column: %w", err)
	}

	values := raw.Values
	if values == nil {
		values = []Value{}
	}
	return &MembershipExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBoundComparison, ExprType: ExpressionType(raw.Type)},
		Column:         col,
		Values:         values,
	}, nil
}

// rawConjunction is the JSON structure for conjunction and operator expressions.
type rawConjunction struct {
	Type     string            `json:"type"`
	Children []json.RawMessage `json:"children"`
}

func parseChildren(raw []json.RawMessage) ([]Expression, error) {
	children := make([]Expression, 0, len(raw))
	for i, child := range raw {
		expr, err := parseExpression(child)
		if err != nil {
			return nil, fmt.Errorf("invalid child %d: %w", i, err)
		}
		children = append(children, expr)
	}
	return children, nil
}

func parseConjunctionExpression(data json.RawMessage) (*ConjunctionExpression, error) {
	var raw rawConjunction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid conjunction expression: %w", err)
	}

	children, err := parseChildren(raw.Children)
	if err != nil {
		return nil, err
	}
	return conjunction(ExpressionType(raw.Type), children...), nil
}

func parseOperatorExpression(data json.RawMessage) (*NotExpression, error) {
	var raw rawConjunction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid operator expression: %w", err)
	}
	if ExpressionType(raw.Type) != TypeOperatorNot {
		return nil, &UnsupportedOperatorError{Op: ExpressionType(raw.Type)}
	}
	if len(raw.Children) != 1 {
		return nil, fmt.Errorf("%w: NOT expects 1 child, got %d", ErrInvalidExpression, len(raw.Children))
	}

	children, err := parseChildren(raw.Children)
	if err != nil {
		return nil, err
	}
	return Not(children[0]), nil
}

// rawConstant is the JSON structure for constant expressions.
type rawConstant struct {
	Value Value `json:"value"`
}

func parseConstantExpression(data json.RawMessage) (*ConstantExpression, error) {
	var raw rawConstant
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid constant expression: %w", err)
	}
	return Lit(raw.Value), nil
}

// rawColumnRef is the JSON structure for column reference expressions.
type rawColumnRef struct {
	Name string `json:"name"`
}

func parseColumnRefExpression(data json.RawMessage) (*ColumnRefExpression, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: missing column reference", ErrInvalidExpression)
	}
	var raw rawColumnRef
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid column reference: %w", err)
	}
	return Col(raw.Name), nil
}

// Marshal encodes a predicate to its JSON wire form. A nil expression
// encodes as null.
func Marshal(expr Expression) ([]byte, error) {
	if expr == nil {
		return []byte("null"), nil
	}
	return json.Marshal(expr)
}

// MarshalJSON implements json.Marshaler.
func (c *ColumnRefExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BaseExpression
		Name string `json:"name"`
	}{c.BaseExpression, c.Name})
}

// MarshalJSON implements json.Marshaler.
func (c *ConstantExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BaseExpression
		Value Value `json:"value"`
	}{c.BaseExpression, c.Value})
}

// MarshalJSON implements json.Marshaler.
func (c *ComparisonExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BaseExpression
		Left  Expression `json:"left"`
		Right Expression `json:"right"`
	}{c.BaseExpression, c.Left, c.Right})
}

// MarshalJSON implements json.Marshaler.
func (m *MembershipExpression) MarshalJSON() ([]byte, error) {
	values := m.Values
	if values == nil {
		values = []Value{}
	}
	return json.Marshal(struct {
		BaseExpression
		Column *ColumnRefExpression `json:"column"`
		Values []Value              `json:"values"`
	}{m.BaseExpression, m.Column, values})
}

// MarshalJSON implements json.Marshaler.
func (c *ConjunctionExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BaseExpression
		Children []Expression `json:"children"`
	}{c.BaseExpression, c.Children})
}

// MarshalJSON implements json.Marshaler.
func (n *NotExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BaseExpression
		Children []Expression `json:"children"`
	}{n.BaseExpression, []Expression{n.Child}})
}

// rawValue is the JSON structure of a typed literal. Non-finite floats are
// carried as strings since JSON has no representation for them.
type rawValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if err := validateValue(v); err != nil {
		return nil, err
	}
	var data any = v.Data
	if f, ok := v.Data.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		data = strconv.FormatFloat(f, 'g', -1, 64)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawValue{Type: v.Type.String(), Value: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw rawValue
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	t, err := column.ParseType(raw.Type)
	if err != nil {
		return fmt.Errorf("invalid value type: %w", err)
	}

	var d any
	switch t.Kind {
	case column.KindInt, column.KindUint, column.KindFloat:
		d, err = parseNumber(t, raw.Value)
	case column.KindFixedString, column.KindString:
		var s string
		err = json.Unmarshal(raw.Value, &s)
		d = s
	case column.KindBool:
		var b bool
		err = json.Unmarshal(raw.Value, &b)
		d = b
	}
	if err != nil {
		return fmt.Errorf("invalid %s value %s: %w", t, raw.Value, err)
	}

	*v = Value{Type: t, Data: d}
	return nil
}

func parseNumber(t column.Type, data json.RawMessage) (any, error) {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		s = n.String()
	}

	switch t.Kind {
	case column.KindInt:
		return strconv.ParseInt(s, 10, 64)
	case column.KindUint:
		return strconv.ParseUint(s, 10, 64)
	default:
		return strconv.ParseFloat(s, 64)
	}
}
