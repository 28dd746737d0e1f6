package flight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hugr-lab/segstore/auth"
	"github.com/hugr-lab/segstore/catalog"
	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/query"
)

// libraryReader reads from a memory library with the query engine.
type libraryReader struct {
	lib    *catalog.MemoryLibrary
	engine *query.Engine
	panic  bool
}

func (r *libraryReader) Read(ctx context.Context, req ReadRequest) (*query.Table, error) {
	if r.panic {
		panic("reader exploded")
	}
	segs, err := r.lib.Segments(ctx, req.Symbol, req.At)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, s := range segs {
			s.Release()
		}
	}()
	return r.engine.Read(ctx, segs, req.Filter, req.Columns)
}

func (r *libraryReader) Symbols(ctx context.Context) ([]string, error) {
	return r.lib.Symbols(ctx)
}

func (r *libraryReader) Schema(ctx context.Context, symbol string, at *catalog.TimePoint) (*arrow.Schema, error) {
	segs, err := r.lib.Segments(ctx, symbol, at)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, s := range segs {
			s.Release()
		}
	}()
	u, err := query.ResolveSchema(segs)
	if err != nil {
		return nil, err
	}
	return u.Output().ToArrow(), nil
}

func pricesRecord(t *testing.T, mem memory.Allocator, ids []int64, prices []float64) arrow.RecordBatch {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	b.Field(1).(*array.Float64Builder).AppendValues(prices, nil)
	return b.NewRecordBatch()
}

func qtyRecord(t *testing.T, mem memory.Allocator, ids []int64, qty []int32) arrow.RecordBatch {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "qty", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	b.Field(1).(*array.Int32Builder).AppendValues(qty, nil)
	return b.NewRecordBatch()
}

// newTestLibrary writes "prices" as two versions: the second appends a
// segment with a new qty column and no price column.
func newTestLibrary(t *testing.T) *catalog.MemoryLibrary {
	t.Helper()
	lib, err := catalog.NewMemoryLibrary()
	if err != nil {
		t.Fatalf("NewMemoryLibrary failed: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	ctx := context.Background()
	rec := pricesRecord(t, memory.DefaultAllocator, []int64{1, 2, 3}, []float64{10, 20.5, 30})
	defer rec.Release()
	if _, err := lib.Write(ctx, "prices", rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rec2 := qtyRecord(t, memory.DefaultAllocator, []int64{4, 5}, []int32{7, 8})
	defer rec2.Release()
	if _, err := lib.Append(ctx, "prices", rec2, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return lib
}

// startServer serves reader over an in-memory listener and returns a
// connected client.
func startServer(t *testing.T, reader Reader) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	RegisterFlightServer(grpcServer, NewServer(reader, memory.DefaultAllocator, slog.Default(), "localhost:8815"))
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func int64Values(t *testing.T, tbl arrow.Table, name string) []int64 {
	t.Helper()
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) != 1 {
		t.Fatalf("column %s not found in %s", name, tbl.Schema())
	}
	var out []int64
	for _, chunk := range tbl.Column(idx[0]).Data().Chunks() {
		arr := chunk.(*array.Int64)
		for i := 0; i < arr.Len(); i++ {
			out = append(out, arr.Value(i))
		}
	}
	return out
}

func TestDoGet(t *testing.T) {
	lib := newTestLibrary(t)
	client := startServer(t, &libraryReader{lib: lib, engine: query.NewEngine()})
	ctx := context.Background()

	t.Run("latest with filter", func(t *testing.T) {
		td, err := NewTicket("prices", filter.Or(filter.Col("price").Gt(15), filter.Col("qty").Eq(8)), "id", "qty")
		if err != nil {
			t.Fatalf("NewTicket failed: %v", err)
		}
		tbl, err := client.Read(ctx, td)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		defer tbl.Release()

		ids := int64Values(t, tbl, "id")
		if fmt.Sprint(ids) != "[2 3 5]" {
			t.Errorf("ids = %v, want [2 3 5]", ids)
		}
		if tbl.NumCols() != 2 {
			t.Errorf("NumCols = %d, want 2", tbl.NumCols())
		}
		if got := tbl.Schema().Field(1).Type; !arrow.TypeEqual(got, arrow.PrimitiveTypes.Int32) {
			t.Errorf("qty type = %s, want int32", got)
		}
	})

	t.Run("first version", func(t *testing.T) {
		td := &TicketData{Symbol: "prices", Version: int64Ptr(0)}
		tbl, err := client.Read(ctx, td)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		defer tbl.Release()

		if tbl.NumRows() != 3 {
			t.Errorf("NumRows = %d, want 3", tbl.NumRows())
		}
		if len(tbl.Schema().FieldIndices("qty")) != 0 {
			t.Errorf("qty present in first version schema %s", tbl.Schema())
		}
	})

	t.Run("no rows keeps schema", func(t *testing.T) {
		td, _ := NewTicket("prices", filter.Col("price").Lt(0))
		tbl, err := client.Read(ctx, td)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		defer tbl.Release()

		if tbl.NumRows() != 0 {
			t.Errorf("NumRows = %d, want 0", tbl.NumRows())
		}
		if tbl.NumCols() != 3 {
			t.Errorf("NumCols = %d, want 3", tbl.NumCols())
		}
	})
}

func TestDoGetErrors(t *testing.T) {
	lib := newTestLibrary(t)
	client := startServer(t, &libraryReader{lib: lib, engine: query.NewEngine()})
	ctx := context.Background()

	tests := []struct {
		name   string
		ticket func() *TicketData
		code   codes.Code
	}{
		{
			name:   "missing symbol",
			ticket: func() *TicketData { return &TicketData{Symbol: "nope"} },
			code:   codes.NotFound,
		},
		{
			name:   "missing version",
			ticket: func() *TicketData { return &TicketData{Symbol: "prices", Version: int64Ptr(9)} },
			code:   codes.NotFound,
		},
		{
			name:   "missing snapshot",
			ticket: func() *TicketData { return &TicketData{Symbol: "prices", Snapshot: "eod"} },
			code:   codes.NotFound,
		},
		{
			name: "incompatible comparison",
			ticket: func() *TicketData {
				td, _ := NewTicket("prices", filter.Col("price").Eq("ten"))
				return td
			},
			code: codes.InvalidArgument,
		},
		{
			name: "malformed filter",
			ticket: func() *TicketData {
				return &TicketData{Symbol: "prices", Filter: []byte(`{"type":"NOPE"}`)}
			},
			code: codes.InvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Read(ctx, tt.ticket())
			if got := status.Code(err); got != tt.code {
				t.Errorf("code = %v, want %v (err %v)", got, tt.code, err)
			}
		})
	}

	t.Run("undecodable ticket", func(t *testing.T) {
		stream, err := client.svc.DoGet(ctx, &flight.Ticket{Ticket: []byte{0xc1}})
		if err != nil {
			t.Fatalf("DoGet failed: %v", err)
		}
		_, err = stream.Recv()
		if got := status.Code(err); got != codes.InvalidArgument {
			t.Errorf("code = %v, want InvalidArgument (err %v)", got, err)
		}
	})
}

func TestDoGetPanicIsInternal(t *testing.T) {
	lib := newTestLibrary(t)
	client := startServer(t, &libraryReader{lib: lib, engine: query.NewEngine(), panic: true})

	_, err := client.Read(context.Background(), &TicketData{Symbol: "prices"})
	if got := status.Code(err); got != codes.Internal {
		t.Errorf("code = %v, want Internal (err %v)", got, err)
	}
}

func TestListFlights(t *testing.T) {
	lib := newTestLibrary(t)
	rec := qtyRecord(t, memory.DefaultAllocator, []int64{1}, []int32{1})
	defer rec.Release()
	if _, err := lib.Write(context.Background(), "orders", rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	client := startServer(t, &libraryReader{lib: lib, engine: query.NewEngine()})

	infos, err := client.Symbols(context.Background())
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d symbols, want 2", len(infos))
	}
	if infos[0].Symbol != "orders" || infos[1].Symbol != "prices" {
		t.Errorf("symbols = [%s %s], want [orders prices]", infos[0].Symbol, infos[1].Symbol)
	}

	want := []string{"id", "price", "qty"}
	fields := infos[1].Schema.Fields()
	if len(fields) != len(want) {
		t.Fatalf("prices schema = %s, want columns %v", infos[1].Schema, want)
	}
	for i, f := range fields {
		if f.Name != want[i] {
			t.Errorf("field %d = %s, want %s", i, f.Name, want[i])
		}
	}
}

func TestGetFlightInfo(t *testing.T) {
	lib := newTestLibrary(t)
	client := startServer(t, &libraryReader{lib: lib, engine: query.NewEngine()})
	ctx := context.Background()

	info, err := client.svc.GetFlightInfo(ctx, &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{"prices"},
	})
	if err != nil {
		t.Fatalf("GetFlightInfo failed: %v", err)
	}
	if len(info.GetEndpoint()) != 1 {
		t.Fatalf("got %d endpoints, want 1", len(info.GetEndpoint()))
	}
	ep := info.GetEndpoint()[0]
	if len(ep.GetLocation()) != 1 || ep.GetLocation()[0].GetUri() != "grpc://localhost:8815" {
		t.Errorf("locations = %v, want grpc://localhost:8815", ep.GetLocation())
	}
	td, err := DecodeTicket(ep.GetTicket().GetTicket())
	if err != nil {
		t.Fatalf("DecodeTicket failed: %v", err)
	}
	if td.Symbol != "prices" {
		t.Errorf("ticket symbol = %s, want prices", td.Symbol)
	}

	_, err = client.svc.GetFlightInfo(ctx, &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{"a", "b"},
	})
	if got := status.Code(err); got != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", got)
	}

	_, err = client.svc.GetFlightInfo(ctx, &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{"nope"},
	})
	if got := status.Code(err); got != codes.NotFound {
		t.Errorf("code = %v, want NotFound", got)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{context.Canceled, codes.Canceled},
		{fmt.Errorf("read: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{catalog.ErrSymbolNotFound, codes.NotFound},
		{fmt.Errorf("x: %w", catalog.ErrVersionNotFound), codes.NotFound},
		{ErrInvalidTicket, codes.InvalidArgument},
		{fmt.Errorf("%w: bob", auth.ErrPermissionDenied), codes.PermissionDenied},
		{&column.IncompatibleTypesError{Column: "a", Left: column.Int(8), Right: column.String()}, codes.InvalidArgument},
		{filter.ErrUnsupportedOperator, codes.InvalidArgument},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		if got := statusCode(tt.err); got != tt.code {
			t.Errorf("statusCode(%v) = %v, want %v", tt.err, got, tt.code)
		}
	}

	st := status.Error(codes.Unavailable, "down")
	if got := toStatus(st); status.Code(got) != codes.Unavailable {
		t.Errorf("toStatus changed code of status error: %v", got)
	}
}
