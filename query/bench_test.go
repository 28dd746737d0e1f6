package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/segment"
)

// benchSegments builds n segments of rows rows each; odd segments store
// price as float64, even ones as int32.
func benchSegments(b *testing.B, n, rows int) []*segment.Segment {
	b.Helper()
	mem := memory.DefaultAllocator

	segs := make([]*segment.Segment, n)
	for s := range segs {
		ids := make([]int64, rows)
		for i := range ids {
			ids[i] = int64(s*rows + i)
		}
		var price *column.Column
		if s%2 == 1 {
			vs := make([]float64, rows)
			for i := range vs {
				vs[i] = float64(i%1000) / 4
			}
			price = float64Col(b, mem, "price", vs, nil)
		} else {
			vs := make([]int32, rows)
			for i := range vs {
				vs[i] = int32(i % 250)
			}
			price = int32Col(b, mem, "price", vs, nil)
		}
		segs[s] = newSegment(b, fmt.Sprintf("bench-%d", s), s, int64Col(b, mem, "id", ids, nil), price)
	}
	return segs
}

func BenchmarkRead(b *testing.B) {
	for _, parallelism := range []int{1, 4} {
		b.Run(fmt.Sprintf("parallelism=%d", parallelism), func(b *testing.B) {
			segs := benchSegments(b, 8, 64*1024)
			defer releaseAll(segs)

			e := NewEngine(WithParallelism(parallelism))
			expr := filter.And(filter.Col("price").Ge(100), filter.Col("id").IsNotIn(1, 2, 3))
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				tbl, err := e.Read(ctx, segs, expr, nil)
				if err != nil {
					b.Fatalf("Read failed: %v", err)
				}
				tbl.Release()
			}
		})
	}
}
