package query

import (
	"errors"

	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/segment"
)

// UnifiedSchema is the dataset schema observed across the segments of one
// query: every column name seen in any segment, typed with the widest type
// any segment declares for it. It is immutable once resolved and shared by
// all per-segment evaluations.
type UnifiedSchema struct {
	fields   []column.Field
	index    map[string]int
	segments []*column.Schema

	// output is the projected result schema; unknown lists projected
	// names no segment contains.
	output  *column.Schema
	unknown []string
}

// ResolveSchema folds column.Widen over every segment's declared type for
// each column name. Columns keep first-seen order: segment order, then
// column order within the segment. The output schema covers all columns
// until narrowed with Project.
//
// A type conflict returns *column.IncompatibleTypesError naming the column.
func ResolveSchema(segments []*segment.Segment) (*UnifiedSchema, error) {
	u := &UnifiedSchema{
		index:    make(map[string]int),
		segments: make([]*column.Schema, len(segments)),
	}

	var observed [][]column.Type
	for i, seg := range segments {
		schema := seg.Schema()
		u.segments[i] = schema
		for _, f := range schema.Fields() {
			j, ok := u.index[f.Name]
			if !ok {
				j = len(u.fields)
				u.index[f.Name] = j
				u.fields = append(u.fields, column.Field{Name: f.Name})
				observed = append(observed, nil)
			}
			observed[j] = append(observed[j], f.Type)
		}
	}

	for j := range u.fields {
		t, err := column.WidenAll(observed[j]...)
		if err != nil {
			var ite *column.IncompatibleTypesError
			if errors.As(err, &ite) {
				return nil, ite.ForColumn(u.fields[j].Name)
			}
			return nil, err
		}
		u.fields[j].Type = t
	}

	output, err := column.NewSchema(u.fields...)
	if err != nil {
		return nil, err
	}
	u.output = output
	return u, nil
}

// Fields returns every observed column with its unified type.
func (u *UnifiedSchema) Fields() []column.Field {
	out := make([]column.Field, len(u.fields))
	copy(out, u.fields)
	return out
}

// Type returns the unified type of the named column, or false when no
// segment contains it.
func (u *UnifiedSchema) Type(name string) (column.Type, bool) {
	j, ok := u.index[name]
	if !ok {
		return column.Type{}, false
	}
	return u.fields[j].Type, true
}

// NumSegments returns the number of segments the schema was resolved from.
func (u *UnifiedSchema) NumSegments() int { return len(u.segments) }

// Absent reports whether segment i lacks the named column.
func (u *UnifiedSchema) Absent(i int, name string) bool {
	return u.segments[i].Index(name) < 0
}

// Missing lists the observed columns segment i does not contain, in
// unified order.
func (u *UnifiedSchema) Missing(i int) []string {
	var out []string
	for _, f := range u.fields {
		if u.Absent(i, f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

// Project returns a copy of u whose output schema lists the requested
// columns in request order. A nil projection keeps every column.
// Duplicate names are kept once. Names no segment contains are omitted from
// the output and reported by Unknown.
func (u *UnifiedSchema) Project(columns []string) (*UnifiedSchema, error) {
	p := *u
	p.unknown = nil
	if columns == nil {
		return &p, nil
	}

	seen := make(map[string]bool, len(columns))
	fields := make([]column.Field, 0, len(columns))
	for _, name := range columns {
		if seen[name] {
			continue
		}
		seen[name] = true
		t, ok := u.Type(name)
		if !ok {
			p.unknown = append(p.unknown, name)
			continue
		}
		fields = append(fields, column.Field{Name: name, Type: t})
	}

	output, err := column.NewSchema(fields...)
	if err != nil {
		return nil, err
	}
	p.output = output
	return &p, nil
}

// Output returns the result schema.
func (u *UnifiedSchema) Output() *column.Schema { return u.output }

// Unknown lists projected columns that no segment contains.
func (u *UnifiedSchema) Unknown() []string { return u.unknown }

// Check type-checks expr against the unified column types: both sides of a
// comparison must be comparable, ordering operators do not apply to
// booleans and every IN value must be comparable with its column. Columns
// that no segment contains are skipped; they evaluate as null.
//
// Check covers the whole tree, so errors do not depend on which branches
// evaluation short-circuits.
func (u *UnifiedSchema) Check(expr filter.Expression) error {
	switch ex := expr.(type) {
	case nil:
		return nil

	case *filter.ComparisonExpression:
		lt, lname, lok := u.operandType(ex.Left)
		rt, rname, rok := u.operandType(ex.Right)
		if !lok || !rok {
			return nil
		}
		name := lname
		if name == "" {
			name = rname
		}
		return checkComparison(ex.Type(), name, lt, rt)

	case *filter.MembershipExpression:
		if ex.Column == nil {
			return nil
		}
		t, ok := u.Type(ex.Column.Name)
		if !ok {
			return nil
		}
		return checkMembership(ex.Column.Name, t, ex.Values)

	case *filter.ConjunctionExpression:
		for _, child := range ex.Children {
			if err := u.Check(child); err != nil {
				return err
			}
		}
		return nil

	case *filter.NotExpression:
		return u.Check(ex.Child)
	}
	return nil
}

func (u *UnifiedSchema) operandType(e filter.Expression) (column.Type, string, bool) {
	switch op := e.(type) {
	case *filter.ConstantExpression:
		return op.Value.Type, "", true
	case *filter.ColumnRefExpression:
		t, ok := u.Type(op.Name)
		return t, op.Name, ok
	}
	return column.Type{}, "", false
}

func checkComparison(op filter.ExpressionType, name string, l, r column.Type) error {
	if !l.Comparable(r) {
		return &column.IncompatibleTypesError{Column: name, Left: l, Right: r}
	}
	if op.IsOrdering() && l.Kind == column.KindBool {
		return &filter.UnsupportedOperatorError{Op: op, Column: name, Type: l}
	}
	return nil
}

func checkMembership(name string, t column.Type, values []filter.Value) error {
	for _, v := range values {
		if !t.Comparable(v.Type) {
			return &column.IncompatibleTypesError{Column: name, Left: t, Right: v.Type}
		}
	}
	return nil
}
