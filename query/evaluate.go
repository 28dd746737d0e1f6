package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/segment"
)

// AbsentColumnWarning records a predicate column that a segment lacks.
// The column evaluated as all-null for that segment. It is diagnostic only.
type AbsentColumnWarning struct {
	Column    string
	Segment   int
	SegmentID string
	// Unknown is true when no segment of the query contains the column.
	Unknown bool
}

func (w AbsentColumnWarning) String() string {
	if w.Unknown {
		return fmt.Sprintf("column %q does not exist in any segment; treated as null", w.Column)
	}
	return fmt.Sprintf("column %q is absent from segment %s (#%d); treated as null", w.Column, w.SegmentID, w.Segment)
}

// SegmentResult is the outcome of evaluating a predicate against one
// segment: the selection mask and the output columns present in the
// segment, already promoted to their unified types.
type SegmentResult struct {
	// Index is the position of the segment in the query's segment list.
	Index     int
	SegmentID string
	Rows      int
	Mask      *Mask
	Columns   map[string]*column.Column
	Warnings  []AbsentColumnWarning
}

// Selected returns the number of rows the mask selects.
func (r *SegmentResult) Selected() int { return r.Mask.Count() }

// Release drops the promoted column buffers.
func (r *SegmentResult) Release() {
	for _, c := range r.Columns {
		c.Release()
	}
	r.Columns = nil
}

// Evaluator evaluates one predicate against the segments of one query.
// It holds only immutable state and may be used from many goroutines.
type Evaluator struct {
	mem    memory.Allocator
	schema *UnifiedSchema
	expr   filter.Expression
}

// NewEvaluator creates an evaluator for expr over segments described by
// schema. A nil expr selects every row. expr must have passed
// filter.Validate.
func NewEvaluator(mem memory.Allocator, schema *UnifiedSchema, expr filter.Expression) *Evaluator {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Evaluator{mem: mem, schema: schema, expr: expr}
}

// Evaluate computes the selection mask of segment index and collects its
// output columns. The segment must be the index-th segment the schema was
// resolved from.
//
// Columns present in the segment are promoted to their unified type before
// comparison. Columns absent from the segment evaluate as all-null:
// =, <, <=, >, >= and IN are false on every row, <> and NOT IN are true.
func (ev *Evaluator) Evaluate(ctx context.Context, index int, seg *segment.Segment) (*SegmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= ev.schema.NumSegments() {
		return nil, fmt.Errorf("segment index %d out of range [0, %d)", index, ev.schema.NumSegments())
	}

	st := &segmentEval{
		ctx:      ctx,
		ev:       ev,
		index:    index,
		seg:      seg,
		n:        seg.NumRows(),
		promoted: make(map[string]arrow.Array),
		warned:   make(map[string]bool),
	}
	defer st.release()

	mask := FullMask(st.n)
	if ev.expr != nil {
		var err error
		if mask, err = st.eval(ev.expr); err != nil {
			return nil, err
		}
	}

	res := &SegmentResult{
		Index:     index,
		SegmentID: seg.ID(),
		Rows:      st.n,
		Mask:      mask,
		Columns:   make(map[string]*column.Column),
		Warnings:  st.warnings,
	}
	if mask.IsEmpty() {
		return res, nil
	}

	out := ev.schema.Output()
	for i := 0; i < out.Len(); i++ {
		f := out.Field(i)
		arr, ok, err := st.column(f.Name)
		if err != nil {
			res.Release()
			return nil, err
		}
		if !ok {
			continue
		}
		arr.Retain()
		res.Columns[f.Name] = &column.Column{Name: f.Name, Type: f.Type, Values: arr}
	}
	return res, nil
}

// segmentEval is the per-call state of one segment evaluation.
type segmentEval struct {
	ctx   context.Context
	ev    *Evaluator
	index int
	seg   *segment.Segment
	n     int

	// promoted caches column buffers converted to their unified type.
	promoted map[string]arrow.Array
	warned   map[string]bool
	warnings []AbsentColumnWarning
}

func (st *segmentEval) release() {
	for _, arr := range st.promoted {
		arr.Release()
	}
}

// column returns the named column promoted to its unified type, or false
// when the segment lacks it.
func (st *segmentEval) column(name string) (arrow.Array, bool, error) {
	if arr, ok := st.promoted[name]; ok {
		return arr, true, nil
	}
	if st.ev.schema.Absent(st.index, name) {
		return nil, false, nil
	}
	col, ok := st.seg.Column(name)
	if !ok {
		return nil, false, fmt.Errorf("segment %s does not match the unified schema", st.seg.ID())
	}
	to, ok := st.ev.schema.Type(name)
	if !ok {
		return nil, false, fmt.Errorf("column %q is missing from the unified schema", name)
	}
	arr, err := column.Promote(st.ev.mem, col.Values, col.Type, to)
	if err != nil {
		var ite *column.IncompatibleTypesError
		if errors.As(err, &ite) {
			return nil, false, ite.ForColumn(name)
		}
		return nil, false, err
	}
	st.promoted[name] = arr
	return arr, true, nil
}

func (st *segmentEval) warn(name string, unknown bool) {
	if st.warned[name] {
		return
	}
	st.warned[name] = true
	st.warnings = append(st.warnings, AbsentColumnWarning{
		Column:    name,
		Segment:   st.index,
		SegmentID: st.seg.ID(),
		Unknown:   unknown,
	})
}

func (st *segmentEval) eval(expr filter.Expression) (*Mask, error) {
	switch ex := expr.(type) {
	case *filter.ComparisonExpression:
		return st.compare(ex)

	case *filter.MembershipExpression:
		return st.membership(ex)

	case *filter.ConjunctionExpression:
		or := ex.Type() == filter.TypeConjunctionOr
		var acc *Mask
		for _, child := range ex.Children {
			if err := st.ctx.Err(); err != nil {
				return nil, err
			}
			m, err := st.eval(child)
			if err != nil {
				return nil, err
			}
			switch {
			case acc == nil:
				acc = m
			case or:
				acc.Or(m)
			default:
				acc.And(m)
			}
			if (or && acc.IsFull()) || (!or && acc.IsEmpty()) {
				break
			}
		}
		return acc, nil

	case *filter.NotExpression:
		m, err := st.eval(ex.Child)
		if err != nil {
			return nil, err
		}
		m.Not()
		return m, nil
	}
	return nil, fmt.Errorf("%w: cannot evaluate %T", filter.ErrInvalidExpression, expr)
}

// operand is a resolved comparison side.
type operand struct {
	name   string // empty for literals
	typ    column.Type
	known  bool
	absent bool
	arr    arrow.Array
	lit    filter.Value
}

func (st *segmentEval) operand(e filter.Expression) (operand, error) {
	switch op := e.(type) {
	case *filter.ConstantExpression:
		return operand{typ: op.Value.Type, known: true, lit: op.Value}, nil
	case *filter.ColumnRefExpression:
		o := operand{name: op.Name}
		o.typ, o.known = st.ev.schema.Type(op.Name)
		arr, present, err := st.column(op.Name)
		if err != nil {
			return o, err
		}
		o.arr, o.absent = arr, !present
		if o.absent {
			st.warn(op.Name, !o.known)
		}
		return o, nil
	}
	return operand{}, fmt.Errorf("%w: unsupported operand %T", filter.ErrInvalidExpression, e)
}

func (st *segmentEval) compare(c *filter.ComparisonExpression) (*Mask, error) {
	op := c.Type()
	l, err := st.operand(c.Left)
	if err != nil {
		return nil, err
	}
	r, err := st.operand(c.Right)
	if err != nil {
		return nil, err
	}
	// literal op column is evaluated as column op' literal
	if l.name == "" && r.name != "" {
		l, r = r, l
		op = op.Commute()
	}

	// Type checks run before the absence shortcut so that a predicate fails
	// the same way regardless of which segment is evaluated first.
	name := l.name
	if name == "" {
		name = r.name
	}
	if l.known && r.known {
		if err := checkComparison(op, name, l.typ, r.typ); err != nil {
			return nil, err
		}
	}
	if l.absent || r.absent {
		return constMask(st.n, nullHolds(op)), nil
	}

	switch {
	case l.typ.IsNumeric():
		lg, err := numberGetter(l)
		if err != nil {
			return nil, err
		}
		rg, err := numberGetter(r)
		if err != nil {
			return nil, err
		}
		return compareRows(st.n, op, lg, rg, compareNumbers), nil

	case l.typ.IsStringLike():
		lg, err := stringGetter(l)
		if err != nil {
			return nil, err
		}
		rg, err := stringGetter(r)
		if err != nil {
			return nil, err
		}
		return compareRows(st.n, op, lg, rg, compareStrings), nil

	case l.typ.Kind == column.KindBool:
		lg, err := boolGetter(l)
		if err != nil {
			return nil, err
		}
		rg, err := boolGetter(r)
		if err != nil {
			return nil, err
		}
		return compareRows(st.n, op, lg, rg, compareBools), nil
	}
	return nil, &filter.UnsupportedOperatorError{Op: op, Column: name, Type: l.typ}
}

func (st *segmentEval) membership(m *filter.MembershipExpression) (*Mask, error) {
	op := m.Type()
	col, err := st.operand(m.Column)
	if err != nil {
		return nil, err
	}
	if col.known {
		if err := checkMembership(col.name, col.typ, m.Values); err != nil {
			return nil, err
		}
	}

	neg := m.Negated()
	switch {
	case len(m.Values) == 0:
		return constMask(st.n, neg), nil
	case col.absent:
		return constMask(st.n, nullHolds(op)), nil
	}

	switch {
	case col.typ.IsNumeric():
		get, err := numberGetter(col)
		if err != nil {
			return nil, err
		}
		set := make(map[numKey]struct{}, len(m.Values))
		for _, v := range m.Values {
			if k, ok := literalNumber(v).key(); ok {
				set[k] = struct{}{}
			}
		}
		return memberRows(st.n, neg, get, number.key, set), nil

	case col.typ.IsStringLike():
		get, err := stringGetter(col)
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(m.Values))
		for _, v := range m.Values {
			set[literalString(v)] = struct{}{}
		}
		return memberRows(st.n, neg, get, identity[string], set), nil

	case col.typ.Kind == column.KindBool:
		get, err := boolGetter(col)
		if err != nil {
			return nil, err
		}
		set := make(map[bool]struct{}, 2)
		for _, v := range m.Values {
			set[v.Data.(bool)] = struct{}{}
		}
		return memberRows(st.n, neg, get, identity[bool], set), nil
	}
	return nil, &filter.UnsupportedOperatorError{Op: op, Column: col.name, Type: col.typ}
}

// getter yields the value of row i and whether it is non-null.
type getter[T any] func(i int) (T, bool)

func compareRows[T any](n int, op filter.ExpressionType, l, r getter[T], compare func(a, b T) (int, bool)) *Mask {
	m := NewMask(n)
	for i := 0; i < n; i++ {
		a, aok := l(i)
		b, bok := r(i)
		keep := nullHolds(op)
		if aok && bok {
			c, ok := compare(a, b)
			keep = holds(op, c, ok)
		}
		if keep {
			m.Add(i)
		}
	}
	return m
}

func memberRows[T any, K comparable](n int, neg bool, get getter[T], key func(T) (K, bool), set map[K]struct{}) *Mask {
	m := NewMask(n)
	for i := 0; i < n; i++ {
		v, valid := get(i)
		keep := neg
		if valid {
			in := false
			if k, ok := key(v); ok {
				_, in = set[k]
			}
			keep = in != neg
		}
		if keep {
			m.Add(i)
		}
	}
	return m
}

func identity[T any](v T) (T, bool) { return v, true }

func literalString(v filter.Value) string {
	s := v.Data.(string)
	if v.Type.Kind == column.KindFixedString {
		return string(column.TrimPadding([]byte(s)))
	}
	return s
}

func numberGetter(o operand) (getter[number], error) {
	if o.arr == nil {
		v := literalNumber(o.lit)
		return func(int) (number, bool) { return v, true }, nil
	}
	arr := o.arr
	switch o.typ.Kind {
	case column.KindInt:
		get, err := column.Int64s(arr)
		if err != nil {
			return nil, err
		}
		return func(i int) (number, bool) { return intNumber(get(i)), arr.IsValid(i) }, nil
	case column.KindUint:
		get, err := column.Uint64s(arr)
		if err != nil {
			return nil, err
		}
		return func(i int) (number, bool) { return uintNumber(get(i)), arr.IsValid(i) }, nil
	default:
		get, err := column.Float64s(arr)
		if err != nil {
			return nil, err
		}
		return func(i int) (number, bool) { return floatNumber(get(i)), arr.IsValid(i) }, nil
	}
}

func stringGetter(o operand) (getter[string], error) {
	if o.arr == nil {
		v := literalString(o.lit)
		return func(int) (string, bool) { return v, true }, nil
	}
	arr := o.arr
	get, err := column.Strings(arr)
	if err != nil {
		return nil, err
	}
	return func(i int) (string, bool) { return get(i), arr.IsValid(i) }, nil
}

func boolGetter(o operand) (getter[bool], error) {
	if o.arr == nil {
		v := o.lit.Data.(bool)
		return func(int) (bool, bool) { return v, true }, nil
	}
	arr := o.arr
	get, err := column.Bools(arr)
	if err != nil {
		return nil, err
	}
	return func(i int) (bool, bool) { return get(i), arr.IsValid(i) }, nil
}
