package flight

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/segstore/auth"
	"github.com/hugr-lab/segstore/catalog"
	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/filter"
)

// statusCode maps a read error to its gRPC status code.
func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case catalog.IsNotFound(err):
		return codes.NotFound
	case errors.Is(err, auth.ErrPermissionDenied):
		return codes.PermissionDenied
	case errors.Is(err, ErrInvalidTicket),
		errors.Is(err, catalog.ErrInvalidTimePoint),
		errors.Is(err, column.ErrIncompatibleTypes),
		errors.Is(err, filter.ErrInvalidExpression),
		errors.Is(err, filter.ErrUnsupportedOperator),
		errors.Is(err, filter.ErrUnsupportedLiteral):
		return codes.InvalidArgument
	}
	return codes.Internal
}

// toStatus converts err to a gRPC status error, keeping its message.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(statusCode(err), err.Error())
}
