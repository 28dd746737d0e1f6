package segstore

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"google.golang.org/grpc"

	"github.com/hugr-lab/segstore/auth"
	"github.com/hugr-lab/segstore/catalog"
	"github.com/hugr-lab/segstore/flight"
	"github.com/hugr-lab/segstore/query"
)

// NewServer registers the segment store Flight service on grpcServer.
//
// The function:
//  1. Validates the Config
//  2. Opens a Store over config.Library
//  3. Registers the Flight handlers on grpcServer
//
// Does NOT start the gRPC server - user controls lifecycle via grpcServer.Serve().
// Create grpcServer with ServerOptions(config) to enable authentication:
//
//	config := segstore.Config{Library: lib, Auth: auth.BearerAuth(validate)}
//	grpcServer := grpc.NewServer(segstore.ServerOptions(config)...)
//	if err := segstore.NewServer(grpcServer, config); err != nil {
//	    log.Fatal(err)
//	}
//	lis, _ := net.Listen("tcp", ":8815")
//	grpcServer.Serve(lis)
func NewServer(grpcServer *grpc.Server, config Config) error {
	store, err := Open(config)
	if err != nil {
		return err
	}

	logger := store.logger
	flightServer := flight.NewServer(
		&flightReader{store: store, auth: config.Auth},
		config.allocator(),
		logger,
		config.Address,
	)
	flight.RegisterFlightServer(grpcServer, flightServer)

	logger.Info("Segment store Flight server registered",
		"has_auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
		"address", config.Address,
	)
	return nil
}

// ServerOptions returns gRPC server options for config: authentication
// interceptors when config.Auth is set and message size limits.
func ServerOptions(config Config) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if config.Auth != nil {
		opts = append(opts,
			grpc.UnaryInterceptor(auth.UnaryServerInterceptor(config.Auth)),
			grpc.StreamInterceptor(auth.StreamServerInterceptor(config.Auth)),
		)
	}

	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}
	return opts
}

// flightReader serves Flight reads from a Store, checking per-symbol
// access when the authenticator supports it.
type flightReader struct {
	store *Store
	auth  auth.Authenticator
}

func (r *flightReader) Read(ctx context.Context, req flight.ReadRequest) (*query.Table, error) {
	if err := auth.Authorize(ctx, r.auth, req.Symbol); err != nil {
		return nil, err
	}
	return r.store.Read(ctx, req.Symbol, ReadOptions{
		As:      req.At,
		Filter:  req.Filter,
		Columns: req.Columns,
	})
}

// Symbols lists only the symbols the caller may read.
func (r *flightReader) Symbols(ctx context.Context) ([]string, error) {
	symbols, err := r.store.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	out := symbols[:0]
	for _, symbol := range symbols {
		if auth.Authorize(ctx, r.auth, symbol) == nil {
			out = append(out, symbol)
		}
	}
	return out, nil
}

func (r *flightReader) Schema(ctx context.Context, symbol string, at *catalog.TimePoint) (*arrow.Schema, error) {
	if err := auth.Authorize(ctx, r.auth, symbol); err != nil {
		return nil, err
	}
	return r.store.Schema(ctx, symbol, at)
}
