package filter

import "strings"

// Encoder renders predicates as SQL for a target dialect.
type Encoder interface {
	// Encode renders expr as a boolean SQL expression, or returns an empty
	// string when some node has no rendering.
	Encode(expr Expression) string
}

// EncoderOptions configures how column references are rendered.
type EncoderOptions struct {
	// ColumnMapping renames columns; unmapped names render as themselves.
	ColumnMapping map[string]string

	// ColumnExpressions replaces a column reference with raw SQL, e.g.
	// "NULL::BIGINT" for a column the target table lacks. It wins over
	// ColumnMapping.
	ColumnExpressions map[string]string
}

// column renders a column reference.
func (o *EncoderOptions) column(name string) string {
	if sql, ok := o.ColumnExpressions[name]; ok {
		return sql
	}
	if mapped, ok := o.ColumnMapping[name]; ok {
		name = mapped
	}
	return quoteIdentifier(name)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdentifier double-quotes name unless it is a plain identifier that
// is not a reserved word.
func quoteIdentifier(name string) string {
	if isPlainIdentifier(name) && !reservedWords[strings.ToUpper(name)] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlainIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var reservedWords = map[string]bool{
	"ALL": true, "AND": true, "AS": true, "BETWEEN": true, "BY": true,
	"CASE": true, "CAST": true, "DATE": true, "DISTINCT": true, "ELSE": true,
	"END": true, "FALSE": true, "FROM": true, "GROUP": true, "IN": true,
	"INTERVAL": true, "IS": true, "LIKE": true, "LIMIT": true, "NOT": true,
	"NULL": true, "OR": true, "ORDER": true, "SELECT": true, "TABLE": true,
	"THEN": true, "TIME": true, "TIMESTAMP": true, "TRUE": true, "WHEN": true,
	"WHERE": true,
}
