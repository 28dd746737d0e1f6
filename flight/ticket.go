package flight

import (
	"errors"
	"fmt"
	"time"

	"github.com/hugr-lab/segstore/catalog"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/internal/msgpack"
)

// ErrInvalidTicket indicates a ticket that cannot be decoded or is
// internally inconsistent.
var ErrInvalidTicket = errors.New("invalid ticket")

// TicketData represents the decoded content of a Flight ticket.
// Tickets are MessagePack-encoded and name the symbol to read, an optional
// point in time, the output columns and the filter predicate.
type TicketData struct {
	// Symbol is the symbol to read (required).
	Symbol string `msgpack:"symbol"`

	// Version selects a version number; negative values count back from
	// the latest version. At most one of Version, Timestamp and Snapshot
	// can be set.
	Version *int64 `msgpack:"version,omitempty"`

	// Timestamp selects the latest version written at or before this Unix
	// time in nanoseconds.
	Timestamp *int64 `msgpack:"ts_ns,omitempty"`

	// Snapshot selects a named snapshot.
	Snapshot string `msgpack:"snapshot,omitempty"`

	// Columns to return in order (optional, nil means all columns).
	Columns []string `msgpack:"columns,omitempty"`

	// Filter is the predicate in its JSON wire form (optional, empty
	// selects every row).
	Filter []byte `msgpack:"filter,omitempty"`
}

// NewTicket builds ticket data for a read of symbol filtered by expr.
// expr may be nil.
func NewTicket(symbol string, expr filter.Expression, columns ...string) (*TicketData, error) {
	td := &TicketData{Symbol: symbol, Columns: columns}
	if expr != nil {
		data, err := filter.Marshal(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		td.Filter = data
	}
	return td, nil
}

// EncodeTicket serializes ticket data.
func EncodeTicket(td *TicketData) ([]byte, error) {
	if err := td.validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Encode(td)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return data, nil
}

// DecodeTicket parses an opaque ticket.
// Returns an error wrapping ErrInvalidTicket if the ticket is malformed.
func DecodeTicket(ticketBytes []byte) (*TicketData, error) {
	var td TicketData
	if err := msgpack.Decode(ticketBytes, &td); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if err := td.validate(); err != nil {
		return nil, err
	}
	return &td, nil
}

func (td *TicketData) validate() error {
	if td.Symbol == "" {
		return fmt.Errorf("%w: symbol name cannot be empty", ErrInvalidTicket)
	}

	set := 0
	if td.Version != nil {
		set++
	}
	if td.Timestamp != nil {
		set++
	}
	if td.Snapshot != "" {
		set++
	}
	if set > 1 {
		return fmt.Errorf("%w: at most one of version, ts_ns and snapshot can be set", ErrInvalidTicket)
	}
	return nil
}

// TimePoint converts the ticket's time-travel fields for the catalog
// layer. Returns nil for the latest version.
func (td *TicketData) TimePoint() *catalog.TimePoint {
	switch {
	case td.Version != nil:
		return catalog.AtVersion(*td.Version)
	case td.Timestamp != nil:
		return catalog.AtTime(time.Unix(0, *td.Timestamp))
	case td.Snapshot != "":
		return catalog.AtSnapshot(td.Snapshot)
	}
	return nil
}

// Predicate decodes the ticket's filter. Returns nil when the ticket has
// no filter.
func (td *TicketData) Predicate() (filter.Expression, error) {
	return filter.Parse(td.Filter)
}
