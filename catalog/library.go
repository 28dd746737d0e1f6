package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"

	"github.com/hugr-lab/segstore/internal/serialize"
	"github.com/hugr-lab/segstore/segment"
)

// MemoryLibrary is an in-memory versioned segment library.
//
// Every write creates a new version of a symbol. Write replaces the data
// with a single segment; Append adds a segment after the previous
// version's segments, so a symbol's schema may change from one segment to
// the next. Segments are stored as compressed IPC blobs and decoded on
// every read, so stored data is never shared with callers.
//
// Example:
//
//	lib, err := catalog.NewMemoryLibrary()
//	if err != nil { ... }
//	defer lib.Close()
//
//	if _, err := lib.Write(ctx, "prices", rec); err != nil { ... }
//	if _, err := lib.Append(ctx, "prices", rec2); err != nil { ... }
type MemoryLibrary struct {
	mu        sync.RWMutex
	codec     *serialize.Codec
	mem       memory.Allocator
	logger    *slog.Logger
	now       func() time.Time
	symbols   map[string]*history
	snapshots map[string]map[string]int64
	seq       int
	closed    bool
}

// history holds every version of one symbol, oldest first.
type history struct {
	versions []*libraryVersion
}

func (h *history) latest() *libraryVersion { return h.versions[len(h.versions)-1] }

type libraryVersion struct {
	number    int64
	timestamp time.Time
	segments  []*storedSegment
}

func (v *libraryVersion) rows() int64 {
	var n int64
	for _, s := range v.segments {
		n += s.rows
	}
	return n
}

// storedSegment is immutable once written and shared between versions.
type storedSegment struct {
	id   string
	seq  int
	rows int64
	blob []byte
}

// LibraryOption configures a MemoryLibrary.
type LibraryOption func(*MemoryLibrary)

// WithAllocator sets the allocator used to decode segments on read.
func WithAllocator(mem memory.Allocator) LibraryOption {
	return func(l *MemoryLibrary) {
		if mem != nil {
			l.mem = mem
		}
	}
}

// WithLogger sets the library logger.
func WithLogger(logger *slog.Logger) LibraryOption {
	return func(l *MemoryLibrary) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the clock used to timestamp versions.
func WithClock(now func() time.Time) LibraryOption {
	return func(l *MemoryLibrary) {
		if now != nil {
			l.now = now
		}
	}
}

// NewMemoryLibrary creates an empty library.
// Caller must call Close when done.
func NewMemoryLibrary(opts ...LibraryOption) (*MemoryLibrary, error) {
	codec, err := serialize.NewCodec()
	if err != nil {
		return nil, err
	}
	l := &MemoryLibrary{
		codec:     codec,
		mem:       memory.DefaultAllocator,
		logger:    slog.Default(),
		now:       time.Now,
		symbols:   make(map[string]*history),
		snapshots: make(map[string]map[string]int64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// WriteOptions configures Append.
type WriteOptions struct {
	// WriteIfMissing makes Append create the symbol when it does not
	// exist instead of failing with ErrSymbolNotFound.
	WriteIfMissing bool
}

// Write stores rec as a new version of symbol consisting of a single
// segment. Earlier versions stay readable by version, timestamp or
// snapshot.
func (l *MemoryLibrary) Write(ctx context.Context, symbol string, rec arrow.RecordBatch) (VersionInfo, error) {
	return l.write(ctx, symbol, rec, false, true)
}

// Append stores a new version of symbol made of the previous version's
// segments followed by rec. The schema of rec may differ from earlier
// segments.
func (l *MemoryLibrary) Append(ctx context.Context, symbol string, rec arrow.RecordBatch, opts *WriteOptions) (VersionInfo, error) {
	missingOK := opts != nil && opts.WriteIfMissing
	return l.write(ctx, symbol, rec, true, missingOK)
}

func (l *MemoryLibrary) write(ctx context.Context, symbol string, rec arrow.RecordBatch, appendTo, missingOK bool) (VersionInfo, error) {
	if err := ctx.Err(); err != nil {
		return VersionInfo{}, err
	}
	if symbol == "" {
		return VersionInfo{}, fmt.Errorf("empty symbol name: %w", ErrSymbolNotFound)
	}
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return VersionInfo{}, ErrClosed
	}

	id := uuid.NewString()
	// the sequence number is assigned under the lock; encode with a
	// placeholder since blobs do not carry it
	seg, err := segment.New(id, 0, rec)
	if err != nil {
		return VersionInfo{}, err
	}
	blob, err := l.codec.Encode(seg)
	rows := int64(seg.NumRows())
	seg.Release()
	if err != nil {
		return VersionInfo{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return VersionInfo{}, ErrClosed
	}

	h, ok := l.symbols[symbol]
	if !ok && appendTo && !missingOK {
		return VersionInfo{}, fmt.Errorf("append to %s: %w", symbol, ErrSymbolNotFound)
	}
	if !ok {
		h = &history{}
		l.symbols[symbol] = h
	}

	stored := &storedSegment{id: id, seq: l.seq, rows: rows, blob: blob}
	l.seq++

	var segments []*storedSegment
	if appendTo && len(h.versions) > 0 {
		segments = slices.Clone(h.latest().segments)
	}
	segments = append(segments, stored)

	v := &libraryVersion{
		number:    int64(len(h.versions)),
		timestamp: l.now(),
		segments:  segments,
	}
	h.versions = append(h.versions, v)

	l.logger.Debug("Wrote symbol version",
		"symbol", symbol,
		"version", v.number,
		"segment", id,
		"rows", rows,
		"append", appendTo,
	)
	return l.info(symbol, v), nil
}

// Delete removes symbol and all its versions. Snapshots that reference the
// symbol no longer resolve it.
func (l *MemoryLibrary) Delete(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.symbols[symbol]; !ok {
		return fmt.Errorf("delete %s: %w", symbol, ErrSymbolNotFound)
	}
	delete(l.symbols, symbol)
	for _, snap := range l.snapshots {
		delete(snap, symbol)
	}
	return nil
}

// Snapshot records the latest version of every symbol under name.
func (l *MemoryLibrary) Snapshot(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("empty snapshot name: %w", ErrInvalidTimePoint)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.snapshots[name]; ok {
		return fmt.Errorf("snapshot %s: %w", name, ErrSnapshotExists)
	}
	snap := make(map[string]int64, len(l.symbols))
	for symbol, h := range l.symbols {
		snap[symbol] = h.latest().number
	}
	l.snapshots[name] = snap
	return nil
}

// Versions lists every version of symbol, oldest first.
func (l *MemoryLibrary) Versions(ctx context.Context, symbol string) ([]VersionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}
	out := make([]VersionInfo, len(h.versions))
	for i, v := range h.versions {
		out[i] = l.info(symbol, v)
	}
	return out, nil
}

// Symbols implements SegmentSource.
func (l *MemoryLibrary) Symbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.symbols))
	for symbol := range l.symbols {
		out = append(out, symbol)
	}
	slices.Sort(out)
	return out, nil
}

// HasSymbol implements SegmentSource.
func (l *MemoryLibrary) HasSymbol(ctx context.Context, symbol string, at *TimePoint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err := l.resolve(symbol, at)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	}
	return false, err
}

// Segments implements SegmentSource. Segments are decoded from their
// stored blobs, so each call returns independent buffers.
func (l *MemoryLibrary) Segments(ctx context.Context, symbol string, at *TimePoint) ([]*segment.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	v, err := l.resolve(symbol, at)
	l.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	// stored segments are immutable, so decoding needs no lock
	out := make([]*segment.Segment, 0, len(v.segments))
	for _, s := range v.segments {
		if err := ctx.Err(); err != nil {
			releaseSegments(out)
			return nil, err
		}
		seg, err := l.codec.Decode(l.mem, s.id, s.seq, s.blob)
		if err != nil {
			releaseSegments(out)
			return nil, fmt.Errorf("%s version %d: %w", symbol, v.number, err)
		}
		out = append(out, seg)
	}
	return out, nil
}

// Info returns the version of symbol selected by at.
func (l *MemoryLibrary) Info(ctx context.Context, symbol string, at *TimePoint) (VersionInfo, error) {
	if err := ctx.Err(); err != nil {
		return VersionInfo{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, err := l.resolve(symbol, at)
	if err != nil {
		return VersionInfo{}, err
	}
	return l.info(symbol, v), nil
}

// Close releases the codec. The library cannot be written afterwards.
func (l *MemoryLibrary) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.codec.Close()
}

// resolve selects a version. Callers must hold l.mu.
func (l *MemoryLibrary) resolve(symbol string, at *TimePoint) (*libraryVersion, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if at != nil && at.Unit == UnitSnapshot {
		snap, ok := l.snapshots[at.Value]
		if !ok {
			return nil, fmt.Errorf("%s: %w", at.Value, ErrSnapshotNotFound)
		}
		number, ok := snap[symbol]
		if !ok {
			return nil, fmt.Errorf("%s in snapshot %s: %w", symbol, at.Value, ErrSymbolNotFound)
		}
		h, ok := l.symbols[symbol]
		if !ok || number >= int64(len(h.versions)) {
			return nil, fmt.Errorf("%s in snapshot %s: %w", symbol, at.Value, ErrSymbolNotFound)
		}
		return h.versions[number], nil
	}

	h, ok := l.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}
	if at == nil {
		return h.latest(), nil
	}

	switch at.Unit {
	case UnitVersion:
		n, err := strconv.ParseInt(at.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("version %q: %w", at.Value, ErrInvalidTimePoint)
		}
		if n < 0 {
			n += int64(len(h.versions))
		}
		if n < 0 || n >= int64(len(h.versions)) {
			return nil, fmt.Errorf("%s version %s: %w", symbol, at.Value, ErrVersionNotFound)
		}
		return h.versions[n], nil

	case UnitTimestamp:
		t, err := time.Parse(time.RFC3339Nano, at.Value)
		if err != nil {
			return nil, fmt.Errorf("timestamp %q: %w", at.Value, ErrInvalidTimePoint)
		}
		for i := len(h.versions) - 1; i >= 0; i-- {
			if !h.versions[i].timestamp.After(t) {
				return h.versions[i], nil
			}
		}
		return nil, fmt.Errorf("%s as of %s: %w", symbol, at.Value, ErrVersionNotFound)
	}
	return nil, fmt.Errorf("unknown unit %q: %w", at.Unit, ErrInvalidTimePoint)
}

func (l *MemoryLibrary) info(symbol string, v *libraryVersion) VersionInfo {
	return VersionInfo{
		Symbol:    symbol,
		Version:   v.number,
		Timestamp: v.timestamp,
		Segments:  len(v.segments),
		Rows:      v.rows(),
	}
}

func releaseSegments(segs []*segment.Segment) {
	for _, s := range segs {
		s.Release()
	}
}

var _ SegmentSource = (*MemoryLibrary)(nil)
