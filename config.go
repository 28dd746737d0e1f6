package segstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/hugr-lab/segstore/auth"
	"github.com/hugr-lab/segstore/catalog"
)

// Config contains configuration for a segment store and its Flight server.
type Config struct {
	// Library provides versioned segments per symbol.
	// REQUIRED: MUST NOT be nil.
	Library catalog.SegmentSource

	// Auth validates bearer tokens on the Flight server.
	// OPTIONAL: If nil, no authentication (all requests allowed).
	// If it also implements auth.SymbolAuthorizer, reads are checked per
	// symbol.
	Auth auth.Authenticator

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// If Logger is provided, LogLevel is ignored.
	Logger *slog.Logger

	// LogLevel sets the logging level of a text logger on stderr.
	// OPTIONAL: Only used when Logger is nil.
	LogLevel *slog.Level

	// Parallelism caps how many segments one read evaluates concurrently.
	// OPTIONAL: If 0, uses GOMAXPROCS.
	Parallelism int

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	MaxMessageSize int

	// Address is the server's public address (e.g., "localhost:8815").
	// OPTIONAL: If empty, FlightEndpoint locations will not include URI.
	Address string

	// Metrics registers read metrics.
	// OPTIONAL: If nil, metrics are recorded but not exported.
	Metrics prometheus.Registerer

	// TracerProvider creates the span recorded for every read.
	// OPTIONAL: Uses the global otel provider if nil.
	TracerProvider trace.TracerProvider
}

// ErrInvalidConfig indicates Config validation failed.
var ErrInvalidConfig = errors.New("invalid store config")

// validateConfig checks that required Config fields are valid.
func validateConfig(config Config) error {
	if config.Library == nil {
		return fmt.Errorf("%w: library is required", ErrInvalidConfig)
	}
	if config.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalidConfig)
	}
	if config.MaxMessageSize < 0 {
		return fmt.Errorf("%w: max message size must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (config Config) allocator() memory.Allocator {
	if config.Allocator == nil {
		return memory.DefaultAllocator
	}
	return config.Allocator
}

func (config Config) logger() *slog.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	if config.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: *config.LogLevel,
		}))
	}
	return slog.Default()
}
