package segstore

import (
	"context"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/segstore/catalog"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/query"
	"github.com/hugr-lab/segstore/segment"
)

// ReadOptions selects what a read returns. The zero value reads every
// column of every row at the latest version.
type ReadOptions struct {
	// As selects the version; nil reads the latest.
	As *catalog.TimePoint

	// Filter selects rows; nil selects every row.
	Filter filter.Expression

	// Columns lists the output columns in order; nil selects every
	// observed column.
	Columns []string
}

// SymbolNotFoundError reports a read of a symbol that does not exist at the
// requested point in time. It matches catalog.ErrSymbolNotFound.
type SymbolNotFoundError struct {
	Symbol  string
	At      *catalog.TimePoint
	Message string
}

func (e *SymbolNotFoundError) Error() string { return e.Message }

func (e *SymbolNotFoundError) Unwrap() error { return catalog.ErrSymbolNotFound }

// Reader reads one symbol. Implementations MUST be goroutine-safe.
type Reader interface {
	Read(ctx context.Context, symbol string, opts ReadOptions) (*query.Table, error)
}

// Store reads filtered tables from a versioned segment library.
type Store struct {
	library catalog.SegmentSource
	engine  *query.Engine
	logger  *slog.Logger
	reader  Reader
}

// Open creates a store over config.Library.
//
// Example:
//
//	lib, _ := catalog.NewMemoryLibrary()
//	store, err := segstore.Open(segstore.Config{Library: lib})
//	if err != nil { ... }
//	tbl, err := store.Read(ctx, "prices", segstore.ReadOptions{
//	    Filter: filter.Col("price").Gt(100),
//	})
func Open(config Config) (*Store, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	logger := config.logger()

	s := &Store{
		library: config.Library,
		engine: query.NewEngine(
			query.WithAllocator(config.allocator()),
			query.WithLogger(logger),
			query.WithParallelism(config.Parallelism),
		),
		logger: logger,
	}
	metrics, err := NewReadMetrics(config.Metrics)
	if err != nil {
		return nil, err
	}
	s.reader = Instrument(readerFunc(s.read), logger, metrics, config.TracerProvider)
	return s, nil
}

// Read filters symbol at opts.As and returns the selected rows. The caller
// releases the table.
//
// A symbol missing at the requested point in time returns
// *SymbolNotFoundError before any segment is touched.
func (s *Store) Read(ctx context.Context, symbol string, opts ReadOptions) (*query.Table, error) {
	return s.reader.Read(ctx, symbol, opts)
}

func (s *Store) read(ctx context.Context, symbol string, opts ReadOptions) (*query.Table, error) {
	segs, err := s.segments(ctx, symbol, opts.As)
	if err != nil {
		return nil, err
	}
	defer releaseSegments(segs)

	return s.engine.Read(ctx, segs, opts.Filter, opts.Columns)
}

// Schema returns the unified schema of symbol at the given point in time.
func (s *Store) Schema(ctx context.Context, symbol string, at *catalog.TimePoint) (*arrow.Schema, error) {
	segs, err := s.segments(ctx, symbol, at)
	if err != nil {
		return nil, err
	}
	defer releaseSegments(segs)

	u, err := query.ResolveSchema(segs)
	if err != nil {
		return nil, err
	}
	return u.Output().ToArrow(), nil
}

// Symbols lists the symbols of the library.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	return s.library.Symbols(ctx)
}

func (s *Store) segments(ctx context.Context, symbol string, at *catalog.TimePoint) ([]*segment.Segment, error) {
	ok, msg, err := catalog.CheckSymbolExists(ctx, s.library, symbol, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &SymbolNotFoundError{Symbol: symbol, At: at, Message: msg}
	}
	return s.library.Segments(ctx, symbol, at)
}

func releaseSegments(segs []*segment.Segment) {
	for _, seg := range segs {
		seg.Release()
	}
}

// readerFunc adapts a function to Reader.
type readerFunc func(ctx context.Context, symbol string, opts ReadOptions) (*query.Table, error)

func (f readerFunc) Read(ctx context.Context, symbol string, opts ReadOptions) (*query.Table, error) {
	return f(ctx, symbol, opts)
}
