// Package flight serves segment store reads over Arrow Flight.
//
// A client sends a ticket naming a symbol, an optional point in time, the
// output columns and a filter predicate. DoGet evaluates the read and
// streams the resulting table as Arrow IPC record batches. ListFlights and
// GetFlightInfo describe the readable symbols with their unified schema.
package flight

import (
	"context"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/segstore/catalog"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/query"
)

// ReadRequest describes one read.
type ReadRequest struct {
	Symbol string
	// At selects the version; nil reads the latest.
	At      *catalog.TimePoint
	Filter  filter.Expression
	Columns []string
}

// Reader executes reads for the Flight handlers.
// Implementations MUST be goroutine-safe.
type Reader interface {
	// Read evaluates req and returns the result table. The caller
	// releases the table.
	Read(ctx context.Context, req ReadRequest) (*query.Table, error)

	// Symbols lists the readable symbols.
	Symbols(ctx context.Context) ([]string, error)

	// Schema returns the unified schema of symbol at the given point in
	// time.
	Schema(ctx context.Context, symbol string, at *catalog.TimePoint) (*arrow.Schema, error)
}

// Server implements the Flight service handlers.
// Embeds BaseFlightServer for forward compatibility with protocol changes.
type Server struct {
	flight.BaseFlightServer

	reader    Reader
	allocator memory.Allocator
	logger    *slog.Logger
	address   string // Server's public address for FlightEndpoint locations
}

// NewServer creates a Flight server reading through reader.
// The address parameter specifies the server's public address for
// FlightEndpoint locations; it may be empty.
func NewServer(reader Reader, allocator memory.Allocator, logger *slog.Logger, address string) *Server {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		reader:    reader,
		allocator: allocator,
		logger:    logger,
		address:   address,
	}
}

// RegisterFlightServer registers the Flight service on the provided gRPC server.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}

// endpoint builds the single endpoint serving ticket.
func (s *Server) endpoint(ticket []byte) *flight.FlightEndpoint {
	ep := &flight.FlightEndpoint{Ticket: &flight.Ticket{Ticket: ticket}}
	if s.address != "" {
		ep.Location = []*flight.Location{{Uri: "grpc://" + s.address}}
	}
	return ep
}
