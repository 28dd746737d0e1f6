package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/segstore/internal/recovery"
	"github.com/hugr-lab/segstore/query"
)

// DoGet evaluates the read described by the ticket and streams the result.
//
// The handler:
//  1. Decodes the ticket (symbol, time point, columns, filter)
//  2. Parses and validates the filter predicate
//  3. Runs the read under panic recovery
//  4. Streams the result table as one Arrow IPC record batch
//
// Errors map to gRPC codes: a missing symbol, version or snapshot is
// NotFound; malformed tickets, predicates and type conflicts are
// InvalidArgument; anything else is Internal.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoGet called", "ticket_size", len(ticket.GetTicket()))

	td, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	expr, err := td.Predicate()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
	}

	req := ReadRequest{
		Symbol:  td.Symbol,
		At:      td.TimePoint(),
		Filter:  expr,
		Columns: td.Columns,
	}

	s.logger.Debug("DoGet request",
		"symbol", req.Symbol,
		"columns", req.Columns,
		"trace_id", TraceIDFromContext(ctx),
		"session_id", SessionIDFromContext(ctx),
	)
	if req.At != nil {
		s.logger.Debug("Point-in-time query",
			"symbol", req.Symbol,
			"time_unit", req.At.Unit,
			"time_value", req.At.Value,
		)
	}

	table, err := recovery.Call(s.logger, "Read", func() (*query.Table, error) {
		return s.reader.Read(ctx, req)
	})
	if err != nil {
		s.logger.Debug("Read failed", "symbol", req.Symbol, "error", err)
		return toStatus(err)
	}
	defer table.Release()

	rec := table.Record()
	writer := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	if err := writer.Write(rec); err != nil {
		s.logger.Error("Failed to write record batch",
			"symbol", req.Symbol,
			"error", err,
		)
		return status.Errorf(codes.Internal, "failed to write result: %v", err)
	}

	s.logger.Debug("DoGet completed successfully",
		"symbol", req.Symbol,
		"rows", rec.NumRows(),
		"columns", rec.NumCols(),
	)
	return nil
}
