package filter

import (
	"math"
	"testing"

	"github.com/hugr-lab/segstore/column"
)

func TestEncodeComparisonOperators(t *testing.T) {
	c := Col("col")
	tests := []struct {
		expr     Expression
		expected string
	}{
		{c.Eq(42), "COALESCE(col = 42, FALSE)"},
		{c.Ne(42), "COALESCE(col <> 42, TRUE)"},
		{c.Lt(42), "COALESCE(col < 42, FALSE)"},
		{c.Gt(42), "COALESCE(col > 42, FALSE)"},
		{c.Le(42), "COALESCE(col <= 42, FALSE)"},
		{c.Ge(42), "COALESCE(col >= 42, FALSE)"},
	}

	enc := NewDuckDBEncoder(nil)
	for _, tt := range tests {
		t.Run(string(tt.expr.Type()), func(t *testing.T) {
			if sql := enc.Encode(tt.expr); sql != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, sql)
			}
		})
	}
}

func TestEncodeLiterals(t *testing.T) {
	tests := []struct {
		value    any
		expected string
	}{
		{"it's", "COALESCE(x = 'it''s', FALSE)"},
		{true, "COALESCE(x = TRUE, FALSE)"},
		{uint64(math.MaxUint64), "COALESCE(x = 18446744073709551615::UBIGINT, FALSE)"},
		{-7, "COALESCE(x = -7, FALSE)"},
		{1.5, "COALESCE(x = 1.5::DOUBLE, FALSE)"},
		{math.NaN(), "COALESCE(x = 'NaN'::DOUBLE, FALSE)"},
		{math.Inf(-1), "COALESCE(x = '-Infinity'::DOUBLE, FALSE)"},
		{Value{Type: column.FixedString(2), Data: "ab"}, "COALESCE(x = 'ab', FALSE)"},
	}

	enc := NewDuckDBEncoder(nil)
	for _, tt := range tests {
		if sql := enc.Encode(Col("x").Eq(tt.value)); sql != tt.expected {
			t.Errorf("expected '%s', got '%s'", tt.expected, sql)
		}
	}
}

func TestEncodeMembership(t *testing.T) {
	enc := NewDuckDBEncoder(nil)
	tests := []struct {
		expr     Expression
		expected string
	}{
		{Col("v").IsIn(1, 2), "COALESCE(v IN (1, 2), FALSE)"},
		{Col("v").IsNotIn("a"), "COALESCE(v NOT IN ('a'), TRUE)"},
		{Col("v").IsIn(), "FALSE"},
		{Col("v").IsNotIn(), "TRUE"},
	}
	for _, tt := range tests {
		if sql := enc.Encode(tt.expr); sql != tt.expected {
			t.Errorf("expected '%s', got '%s'", tt.expected, sql)
		}
	}
}

func TestEncodeLogic(t *testing.T) {
	enc := NewDuckDBEncoder(nil)
	expr := Or(And(Col("a").Lt(1), Col("b").Eq("x")), Not(Col("c").IsIn()))
	expected := "((COALESCE(a < 1, FALSE) AND COALESCE(b = 'x', FALSE)) OR (NOT FALSE))"
	if sql := enc.Encode(expr); sql != expected {
		t.Errorf("expected '%s', got '%s'", expected, sql)
	}
	if sql := enc.Encode(nil); sql != "TRUE" {
		t.Errorf("expected TRUE for nil predicate, got '%s'", sql)
	}
}

func TestEncodeUnsupportedIsAllOrNothing(t *testing.T) {
	enc := NewDuckDBEncoder(nil)
	expr := And(Col("a").Lt(1), Col("b").Eq(struct{}{}))
	if sql := enc.Encode(expr); sql != "" {
		t.Errorf("expected empty encoding, got '%s'", sql)
	}
}

func TestEncodeColumnMapping(t *testing.T) {
	enc := NewDuckDBEncoder(&EncoderOptions{
		ColumnMapping:     map[string]string{"user_id": "uid"},
		ColumnExpressions: map[string]string{"full": "concat(first, last)"},
	})
	expr := And(Col("user_id").Eq(1), Col("full").Ne("x"))
	expected := "(COALESCE(uid = 1, FALSE) AND COALESCE(concat(first, last) <> 'x', TRUE))"
	if sql := enc.Encode(expr); sql != expected {
		t.Errorf("expected '%s', got '%s'", expected, sql)
	}
}

func TestEncodeQuotedIdentifiers(t *testing.T) {
	enc := NewDuckDBEncoder(nil)
	tests := []struct {
		name     string
		expected string
	}{
		{"select", `COALESCE("select" = 1, FALSE)`},
		{"my col", `COALESCE("my col" = 1, FALSE)`},
		{"1st", `COALESCE("1st" = 1, FALSE)`},
		{`a"b`, `COALESCE("a""b" = 1, FALSE)`},
	}
	for _, tt := range tests {
		if sql := enc.Encode(Col(tt.name).Eq(1)); sql != tt.expected {
			t.Errorf("expected '%s', got '%s'", tt.expected, sql)
		}
	}
}
