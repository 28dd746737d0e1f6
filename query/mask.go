package query

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Mask is a per-row selection over a segment of n rows, backed by a
// 32-bit Roaring bitmap. Bit i is set when row i satisfies the predicate.
type Mask struct {
	rb *roaring.Bitmap
	n  int
}

// NewMask creates a mask over n rows with no row selected.
func NewMask(n int) *Mask {
	return &Mask{rb: roaring.New(), n: n}
}

// FullMask creates a mask over n rows with every row selected.
func FullMask(n int) *Mask {
	m := NewMask(n)
	m.rb.AddRange(0, uint64(n))
	return m
}

// constMask returns a full mask when v is true and an empty one otherwise.
func constMask(n int, v bool) *Mask {
	if v {
		return FullMask(n)
	}
	return NewMask(n)
}

// Len returns the number of rows the mask covers.
func (m *Mask) Len() int { return m.n }

// Add selects row i.
func (m *Mask) Add(i int) { m.rb.Add(uint32(i)) }

// Contains reports whether row i is selected.
func (m *Mask) Contains(i int) bool { return m.rb.Contains(uint32(i)) }

// Count returns the number of selected rows.
func (m *Mask) Count() int { return int(m.rb.GetCardinality()) }

// IsEmpty returns true if no row is selected.
func (m *Mask) IsEmpty() bool { return m.rb.IsEmpty() }

// IsFull returns true if every row is selected.
func (m *Mask) IsFull() bool { return m.Count() == m.n }

// And intersects m with other in place.
func (m *Mask) And(other *Mask) { m.rb.And(other.rb) }

// Or unions other into m in place.
func (m *Mask) Or(other *Mask) { m.rb.Or(other.rb) }

// Not complements m in place over [0, n).
func (m *Mask) Not() { m.rb.Flip(0, uint64(m.n)) }

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask { return &Mask{rb: m.rb.Clone(), n: m.n} }

// Rows iterates the selected rows in ascending order.
func (m *Mask) Rows() iter.Seq[int] {
	return func(yield func(int) bool) {
		it := m.rb.Iterator()
		for it.HasNext() {
			if !yield(int(it.Next())) {
				return
			}
		}
	}
}

// ToArray returns the selected rows in ascending order.
func (m *Mask) ToArray() []int {
	out := make([]int, 0, m.Count())
	for i := range m.Rows() {
		out = append(out, i)
	}
	return out
}
