package query

import (
	"cmp"
	"math"
	"strings"

	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/filter"
)

// number is a numeric value in its exact domain. Comparisons across
// domains never round a 64-bit integer through float64.
type number struct {
	kind column.Kind
	i    int64
	u    uint64
	f    float64
}

func intNumber(v int64) number     { return number{kind: column.KindInt, i: v} }
func uintNumber(v uint64) number   { return number{kind: column.KindUint, u: v} }
func floatNumber(v float64) number { return number{kind: column.KindFloat, f: v} }

func literalNumber(v filter.Value) number {
	switch d := v.Data.(type) {
	case int64:
		return intNumber(d)
	case uint64:
		return uintNumber(d)
	case float64:
		return floatNumber(d)
	}
	return number{}
}

const (
	twoTo63 = 9223372036854775808.0  // 2^63
	twoTo64 = 18446744073709551616.0 // 2^64
)

// compareNumbers returns -1, 0 or +1. ok is false when either side is NaN,
// in which case every operator except != is false.
func compareNumbers(a, b number) (c int, ok bool) {
	switch {
	case a.kind == column.KindFloat && b.kind == column.KindFloat:
		if math.IsNaN(a.f) || math.IsNaN(b.f) {
			return 0, false
		}
		return cmp.Compare(a.f, b.f), true
	case a.kind == column.KindFloat:
		return compareFloat(a.f, b)
	case b.kind == column.KindFloat:
		c, ok = compareFloat(b.f, a)
		return -c, ok
	}

	switch {
	case a.kind == column.KindInt && b.kind == column.KindInt:
		return cmp.Compare(a.i, b.i), true
	case a.kind == column.KindUint && b.kind == column.KindUint:
		return cmp.Compare(a.u, b.u), true
	case a.kind == column.KindInt:
		if a.i < 0 {
			return -1, true
		}
		return cmp.Compare(uint64(a.i), b.u), true
	default:
		if b.i < 0 {
			return 1, true
		}
		return cmp.Compare(a.u, uint64(b.i)), true
	}
}

// compareFloat compares f with the integer n exactly.
func compareFloat(f float64, n number) (int, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	t := math.Trunc(f)
	var c int
	if n.kind == column.KindInt {
		switch {
		case f < -twoTo63:
			return -1, true
		case f >= twoTo63:
			return 1, true
		}
		c = cmp.Compare(int64(t), n.i)
	} else {
		switch {
		case f < 0:
			return -1, true
		case f >= twoTo64:
			return 1, true
		}
		c = cmp.Compare(uint64(t), n.u)
	}
	if c != 0 {
		return c, true
	}
	return cmp.Compare(f-t, 0), true
}

// compareStrings compares logical string values; fixed-width padding must
// already be trimmed.
func compareStrings(a, b string) (int, bool) { return strings.Compare(a, b), true }

func compareBools(a, b bool) (int, bool) {
	switch {
	case a == b:
		return 0, true
	case !a:
		return -1, true
	}
	return 1, true
}

// holds applies a comparison operator to a three-way comparison result.
// ok=false (NaN) makes every operator false except !=.
func holds(op filter.ExpressionType, c int, ok bool) bool {
	if !ok {
		return op == filter.TypeCompareNotEqual
	}
	switch op {
	case filter.TypeCompareEqual:
		return c == 0
	case filter.TypeCompareNotEqual:
		return c != 0
	case filter.TypeCompareLessThan:
		return c < 0
	case filter.TypeCompareLessThanOrEqual:
		return c <= 0
	case filter.TypeCompareGreaterThan:
		return c > 0
	case filter.TypeCompareGreaterThanOrEqual:
		return c >= 0
	}
	return false
}

// nullHolds is the truth value of op when an operand is null:
// only != and NOT IN are true.
func nullHolds(op filter.ExpressionType) bool {
	return op == filter.TypeCompareNotEqual || op == filter.TypeCompareNotIn
}

// numKey is a canonical hash key for a numeric value: numerically equal
// values of different domains map to the same key.
type numKey struct {
	domain uint8
	bits   uint64
}

const (
	keyInt uint8 = iota
	keyUint
	keyFloat
)

// key returns the canonical key of n, or false for NaN, which equals
// nothing.
func (n number) key() (numKey, bool) {
	switch n.kind {
	case column.KindInt:
		return numKey{keyInt, uint64(n.i)}, true
	case column.KindUint:
		if n.u <= math.MaxInt64 {
			return numKey{keyInt, n.u}, true
		}
		return numKey{keyUint, n.u}, true
	}

	f := n.f
	switch {
	case math.IsNaN(f):
		return numKey{}, false
	case f == math.Trunc(f) && f >= -twoTo63 && f < twoTo63:
		// -0.0 lands here as int 0
		return numKey{keyInt, uint64(int64(f))}, true
	case f == math.Trunc(f) && f >= twoTo63 && f < twoTo64:
		return numKey{keyUint, uint64(f)}, true
	}
	return numKey{keyFloat, math.Float64bits(f)}, true
}
