// Package catalog provides the segment sources a store reads from.
//
// A segment source maps symbols to the ordered segments of one version of
// the symbol's data. Versions are selected with a TimePoint: the latest
// version, a version number, a timestamp or a named snapshot.
//
// All implementations are goroutine-safe and respect context cancellation.
package catalog

import (
	"context"

	"github.com/hugr-lab/segstore/segment"
)

// SegmentSource supplies the segments of a symbol at a point in time.
// Implementations MUST be goroutine-safe.
type SegmentSource interface {
	// Symbols returns every symbol with at least one live version, sorted.
	// Returns empty slice (not nil) if the source holds no symbols.
	Symbols(ctx context.Context) ([]string, error)

	// HasSymbol reports whether symbol exists at the given point in time.
	// A nil time point selects the latest version.
	// Returns (false, nil) when the symbol or version does not exist.
	// Returns (false, err) for malformed time points or lookup failures.
	HasSymbol(ctx context.Context, symbol string, at *TimePoint) (bool, error)

	// Segments returns the segments of symbol at the given point in time,
	// in write order. The caller owns the returned segments and must
	// release them.
	// Returns an error wrapping ErrSymbolNotFound or ErrVersionNotFound
	// when there is nothing to read.
	Segments(ctx context.Context, symbol string, at *TimePoint) ([]*segment.Segment, error)
}
