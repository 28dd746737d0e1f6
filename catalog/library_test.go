package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// testRecord builds a single int64 column record with the given values.
func testRecord(t *testing.T, mem memory.Allocator, name string, vs ...int64) arrow.RecordBatch {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(vs, nil)
	return b.NewRecordBatch()
}

// fixedClock returns a clock advancing one minute per call.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Minute)
		return t
	}
}

func newTestLibrary(t *testing.T, mem memory.Allocator, opts ...LibraryOption) *MemoryLibrary {
	t.Helper()
	lib, err := NewMemoryLibrary(append([]LibraryOption{WithAllocator(mem)}, opts...)...)
	if err != nil {
		t.Fatalf("NewMemoryLibrary failed: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func write(t *testing.T, mem memory.Allocator, lib *MemoryLibrary, symbol string, appendTo bool, vs ...int64) VersionInfo {
	t.Helper()
	rec := testRecord(t, mem, "v", vs...)
	defer rec.Release()

	var info VersionInfo
	var err error
	if appendTo {
		info, err = lib.Append(context.Background(), symbol, rec, &WriteOptions{WriteIfMissing: true})
	} else {
		info, err = lib.Write(context.Background(), symbol, rec)
	}
	if err != nil {
		t.Fatalf("write %s failed: %v", symbol, err)
	}
	return info
}

func segmentRows(t *testing.T, lib *MemoryLibrary, symbol string, at *TimePoint) []int {
	t.Helper()
	segs, err := lib.Segments(context.Background(), symbol, at)
	if err != nil {
		t.Fatalf("Segments(%s) failed: %v", symbol, err)
	}
	defer releaseSegments(segs)

	rows := make([]int, len(segs))
	for i, s := range segs {
		rows[i] = s.NumRows()
	}
	return rows
}

func TestMemoryLibraryWriteAndAppend(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	lib := newTestLibrary(t, mem)

	v0 := write(t, mem, lib, "prices", false, 1, 2)
	v1 := write(t, mem, lib, "prices", true, 3)
	v2 := write(t, mem, lib, "prices", true, 4, 5, 6)

	if v0.Version != 0 || v1.Version != 1 || v2.Version != 2 {
		t.Errorf("unexpected version numbers %d %d %d", v0.Version, v1.Version, v2.Version)
	}
	if v2.Segments != 3 || v2.Rows != 6 {
		t.Errorf("expected 3 segments / 6 rows, got %d / %d", v2.Segments, v2.Rows)
	}

	got := segmentRows(t, lib, "prices", nil)
	want := []int{2, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %d rows, got %d", i, want[i], got[i])
		}
	}

	// a write replaces the segments of the latest version
	write(t, mem, lib, "prices", false, 9)
	if rows := segmentRows(t, lib, "prices", nil); len(rows) != 1 || rows[0] != 1 {
		t.Errorf("expected a single 1-row segment after Write, got %v", rows)
	}
	// older versions stay readable
	if rows := segmentRows(t, lib, "prices", AtVersion(1)); len(rows) != 2 {
		t.Errorf("expected 2 segments at version 1, got %v", rows)
	}
	if rows := segmentRows(t, lib, "prices", AtVersion(-2)); len(rows) != 3 {
		t.Errorf("expected 3 segments at version -2, got %v", rows)
	}
}

func TestMemoryLibrarySegmentOrder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	lib := newTestLibrary(t, mem)

	for i := int64(0); i < 5; i++ {
		write(t, mem, lib, "s", true, i)
	}

	segs, err := lib.Segments(context.Background(), "s", nil)
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	defer releaseSegments(segs)

	seen := make(map[string]bool)
	for i, s := range segs {
		if i > 0 && s.Seq() <= segs[i-1].Seq() {
			t.Errorf("segment %d out of order: seq %d after %d", i, s.Seq(), segs[i-1].Seq())
		}
		if seen[s.ID()] {
			t.Errorf("duplicate segment id %s", s.ID())
		}
		seen[s.ID()] = true
	}
}

func TestMemoryLibraryAppendMissing(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	lib := newTestLibrary(t, mem)

	rec := testRecord(t, mem, "v", 1)
	defer rec.Release()

	_, err := lib.Append(context.Background(), "nope", rec, nil)
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}

	info, err := lib.Append(context.Background(), "nope", rec, &WriteOptions{WriteIfMissing: true})
	if err != nil {
		t.Fatalf("Append with WriteIfMissing failed: %v", err)
	}
	if info.Version != 0 {
		t.Errorf("expected version 0, got %d", info.Version)
	}
}

func TestMemoryLibraryTimePoints(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	lib := newTestLibrary(t, mem, WithClock(fixedClock(start)))

	write(t, mem, lib, "a", false, 1) // 10:00
	write(t, mem, lib, "a", true, 2)  // 10:01
	write(t, mem, lib, "b", false, 3) // 10:02
	if err := lib.Snapshot(context.Background(), "snap"); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	write(t, mem, lib, "a", true, 4) // 10:03
	write(t, mem, lib, "c", false, 5)

	ctx := context.Background()
	tests := []struct {
		name     string
		symbol   string
		at       *TimePoint
		segments int
		err      error
	}{
		{"latest", "a", nil, 3, nil},
		{"version", "a", AtVersion(0), 1, nil},
		{"negative version", "a", AtVersion(-1), 3, nil},
		{"version out of range", "a", AtVersion(7), 0, ErrVersionNotFound},
		{"timestamp between writes", "a", AtTime(start.Add(90 * time.Second)), 2, nil},
		{"timestamp exact", "a", AtTime(start), 1, nil},
		{"timestamp before first", "a", AtTime(start.Add(-time.Hour)), 0, ErrVersionNotFound},
		{"snapshot", "a", AtSnapshot("snap"), 2, nil},
		{"symbol after snapshot", "c", AtSnapshot("snap"), 0, ErrSymbolNotFound},
		{"unknown snapshot", "a", AtSnapshot("nope"), 0, ErrSnapshotNotFound},
		{"unknown symbol", "zz", nil, 0, ErrSymbolNotFound},
		{"bad version", "a", &TimePoint{Unit: UnitVersion, Value: "x"}, 0, ErrInvalidTimePoint},
		{"bad unit", "a", &TimePoint{Unit: "epoch", Value: "1"}, 0, ErrInvalidTimePoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := lib.Segments(ctx, tt.symbol, tt.at)
			defer releaseSegments(segs)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Segments failed: %v", err)
			}
			if len(segs) != tt.segments {
				t.Errorf("expected %d segments, got %d", tt.segments, len(segs))
			}

			ok, err := lib.HasSymbol(ctx, tt.symbol, tt.at)
			if err != nil || !ok {
				t.Errorf("HasSymbol = %v, %v; expected true", ok, err)
			}
		})
	}
}

func TestMemoryLibraryHasSymbol(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	lib := newTestLibrary(t, mem)
	ctx := context.Background()

	write(t, mem, lib, "a", false, 1)

	if ok, err := lib.HasSymbol(ctx, "a", nil); err != nil || !ok {
		t.Errorf("expected a to exist, got %v, %v", ok, err)
	}
	if ok, err := lib.HasSymbol(ctx, "b", nil); err != nil || ok {
		t.Errorf("expected b to be missing without error, got %v, %v", ok, err)
	}
	if ok, err := lib.HasSymbol(ctx, "a", AtVersion(3)); err != nil || ok {
		t.Errorf("expected version 3 to be missing without error, got %v, %v", ok, err)
	}
	if _, err := lib.HasSymbol(ctx, "a", &TimePoint{Unit: UnitTimestamp, Value: "yesterday"}); !errors.Is(err, ErrInvalidTimePoint) {
		t.Errorf("expected ErrInvalidTimePoint, got %v", err)
	}
}

func TestMemoryLibrarySymbolsVersionsDelete(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	lib := newTestLibrary(t, mem)
	ctx := context.Background()

	write(t, mem, lib, "b", false, 1)
	write(t, mem, lib, "a", false, 1)
	write(t, mem, lib, "a", true, 2, 3)

	symbols, err := lib.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "a" || symbols[1] != "b" {
		t.Errorf("expected [a b], got %v", symbols)
	}

	versions, err := lib.Versions(ctx, "a")
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 2 || versions[1].Rows != 3 || versions[1].Segments != 2 {
		t.Errorf("unexpected versions %+v", versions)
	}

	if err := lib.Snapshot(ctx, "s1"); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if err := lib.Snapshot(ctx, "s1"); !errors.Is(err, ErrSnapshotExists) {
		t.Errorf("expected ErrSnapshotExists, got %v", err)
	}

	if err := lib.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := lib.Delete(ctx, "a"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
	if ok, _ := lib.HasSymbol(ctx, "a", AtSnapshot("s1")); ok {
		t.Error("deleted symbol still visible through snapshot")
	}
	if _, err := lib.Versions(ctx, "a"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestMemoryLibraryReadsAreIndependent(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	lib := newTestLibrary(t, mem)

	write(t, mem, lib, "a", false, 1, 2, 3)

	first, err := lib.Segments(context.Background(), "a", nil)
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	second, err := lib.Segments(context.Background(), "a", nil)
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	defer releaseSegments(second)

	releaseSegments(first)
	// second read still holds valid buffers after the first is released
	c, ok := second[0].Column("v")
	if !ok {
		t.Fatal("column v missing")
	}
	if got := c.Values.(*array.Int64).Value(2); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestMemoryLibraryConcurrent(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	lib := newTestLibrary(t, mem)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord(t, mem, "v", int64(i))
			defer rec.Release()
			if _, err := lib.Append(context.Background(), "shared", rec, &WriteOptions{WriteIfMissing: true}); err != nil {
				t.Errorf("Append failed: %v", err)
			}
			segs, err := lib.Segments(context.Background(), "shared", nil)
			if err != nil {
				t.Errorf("Segments failed: %v", err)
				return
			}
			releaseSegments(segs)
		}(i)
	}
	wg.Wait()

	versions, err := lib.Versions(context.Background(), "shared")
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 8 || versions[7].Segments != 8 {
		t.Errorf("expected 8 versions ending with 8 segments, got %d", len(versions))
	}
}

func TestMemoryLibraryClosed(t *testing.T) {
	lib, err := NewMemoryLibrary()
	if err != nil {
		t.Fatalf("NewMemoryLibrary failed: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rec := testRecord(t, memory.DefaultAllocator, "v", 1)
	defer rec.Release()
	if _, err := lib.Write(context.Background(), "a", rec); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := lib.Segments(context.Background(), "a", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
