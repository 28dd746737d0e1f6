package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ListFlights returns one FlightInfo per readable symbol. Each carries the
// symbol's latest unified schema and a ticket reading the whole symbol.
//
// Criteria is ignored (returns all symbols).
func (s *Server) ListFlights(criteria *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("ListFlights called")

	symbols, err := s.reader.Symbols(ctx)
	if err != nil {
		s.logger.Error("Failed to list symbols", "error", err)
		return toStatus(err)
	}

	for _, symbol := range symbols {
		desc := &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{symbol},
		}
		info, err := s.flightInfo(ctx, desc, symbol)
		if err != nil {
			return err
		}
		if err := stream.Send(info); err != nil {
			s.logger.Error("Failed to send FlightInfo", "symbol", symbol, "error", err)
			return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
		}
	}

	s.logger.Debug("ListFlights completed successfully", "symbols", len(symbols))
	return nil
}

// flightInfo describes a full read of symbol at its latest version.
func (s *Server) flightInfo(ctx context.Context, desc *flight.FlightDescriptor, symbol string) (*flight.FlightInfo, error) {
	schema, err := s.reader.Schema(ctx, symbol, nil)
	if err != nil {
		s.logger.Error("Failed to resolve schema", "symbol", symbol, "error", err)
		return nil, toStatus(err)
	}

	ticket, err := EncodeTicket(&TicketData{Symbol: symbol})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(schema, s.allocator),
		FlightDescriptor: desc,
		Endpoint:         []*flight.FlightEndpoint{s.endpoint(ticket)},
		TotalRecords:     -1, // Unknown until the filter runs
		TotalBytes:       -1,
	}, nil
}
