package query

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/segment"
)

// Engine evaluates predicates over multi-segment, dynamic-schema datasets.
// It is stateless between reads and safe for concurrent use.
type Engine struct {
	mem         memory.Allocator
	logger      *slog.Logger
	parallelism int
}

// Option configures an Engine.
type Option func(*Engine)

// WithAllocator sets the Arrow allocator for promoted buffers and results.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *Engine) {
		if mem != nil {
			e.mem = mem
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithParallelism bounds the number of segments evaluated concurrently.
// Values below 1 select runtime.GOMAXPROCS(0).
func WithParallelism(n int) Option {
	return func(e *Engine) {
		e.parallelism = n
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		mem:    memory.DefaultAllocator,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallelism < 1 {
		e.parallelism = runtime.GOMAXPROCS(0)
	}
	return e
}

// Read filters segments with expr and returns the selected rows of the
// projected columns as one table.
//
// segments must be in write order. expr may be nil to select every row.
// columns lists the output columns in order; nil selects every observed
// column. Projected columns that no segment contains are omitted.
//
// The read runs in three phases: the unified schema is resolved once, then
// segments are evaluated in parallel, then the results are assembled in
// segment order. Any per-segment failure aborts the whole read and no
// partial table is returned.
func (e *Engine) Read(ctx context.Context, segments []*segment.Segment, expr filter.Expression, columns []string) (*Table, error) {
	start := time.Now()

	if err := filter.Validate(expr); err != nil {
		return nil, err
	}

	resolved, err := ResolveSchema(segments)
	if err != nil {
		return nil, err
	}
	schema, err := resolved.Project(columns)
	if err != nil {
		return nil, err
	}
	if err := schema.Check(expr); err != nil {
		return nil, err
	}
	if unknown := schema.Unknown(); len(unknown) > 0 {
		e.logger.Debug("Projected columns not found in any segment",
			"columns", unknown,
		)
	}

	ev := NewEvaluator(e.mem, schema, expr)
	results := make([]*SegmentResult, len(segments))
	defer func() {
		for _, r := range results {
			if r != nil {
				r.Release()
			}
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.parallelism)
	for i, seg := range segments {
		eg.Go(func() error {
			r, err := ev.Evaluate(egCtx, i, seg)
			if err != nil {
				return fmt.Errorf("segment %s: %w", seg.ID(), err)
			}
			results[i] = r

			e.logger.Debug("Evaluated segment",
				"segment", seg.ID(),
				"rows", r.Rows,
				"selected", r.Selected(),
			)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := Assemble(e.mem, results, schema)
	if err != nil {
		return nil, err
	}

	for _, w := range table.Warnings() {
		e.logger.Debug("Absent column treated as null", "warning", w.String())
	}
	e.logger.Debug("Read completed",
		"segments", len(segments),
		"rows", table.NumRows(),
		"columns", table.NumCols(),
		"duration", time.Since(start),
	)
	return table, nil
}
