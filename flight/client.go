package flight

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client reads from a segment store Flight server.
type Client struct {
	conn      *grpc.ClientConn
	svc       flight.FlightServiceClient
	allocator memory.Allocator
}

// Dial connects to target. Without dial options the connection uses
// insecure transport credentials.
//
// Example:
//
//	client, err := flight.Dial("localhost:8815")
//	if err != nil { ... }
//	defer client.Close()
//
//	td, _ := flight.NewTicket("prices", filter.Col("price").Gt(100))
//	tbl, err := client.Read(ctx, td)
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &Client{
		conn:      conn,
		svc:       flight.NewFlightServiceClient(conn),
		allocator: memory.DefaultAllocator,
	}, nil
}

// WithAllocator sets the allocator for received buffers and returns c.
func (c *Client) WithAllocator(mem memory.Allocator) *Client {
	if mem != nil {
		c.allocator = mem
	}
	return c
}

// Read sends the ticket and collects the streamed batches into a table.
// The caller releases the table.
func (c *Client) Read(ctx context.Context, td *TicketData) (arrow.Table, error) {
	ticket, err := EncodeTicket(td)
	if err != nil {
		return nil, err
	}

	stream, err := c.svc.DoGet(ctx, &flight.Ticket{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(c.allocator))
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	var batches []arrow.RecordBatch
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	for reader.Next() {
		rec := reader.RecordBatch()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return array.NewTableFromRecords(reader.Schema(), batches), nil
}

// SymbolInfo describes one readable symbol.
type SymbolInfo struct {
	Symbol string
	Schema *arrow.Schema
}

// Symbols lists the symbols the server can read with their schemas.
func (c *Client) Symbols(ctx context.Context) ([]SymbolInfo, error) {
	stream, err := c.svc.ListFlights(ctx, &flight.Criteria{})
	if err != nil {
		return nil, err
	}

	var out []SymbolInfo
	for {
		info, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		schema, err := flight.DeserializeSchema(info.GetSchema(), c.allocator)
		if err != nil {
			return nil, fmt.Errorf("failed to decode schema: %w", err)
		}
		path := info.GetFlightDescriptor().GetPath()
		if len(path) != 1 {
			return nil, fmt.Errorf("unexpected descriptor path %v", path)
		}
		out = append(out, SymbolInfo{Symbol: path[0], Schema: schema})
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
