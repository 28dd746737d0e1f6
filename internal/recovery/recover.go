// Package recovery converts panics in read handlers into errors so a
// faulty segment source cannot crash the server.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrPanic is matched by every *PanicError.
var ErrPanic = errors.New("panic recovered")

// PanicError carries a recovered panic value.
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Operation, e.Value)
}

// Unwrap makes errors.Is(err, ErrPanic) succeed.
func (e *PanicError) Unwrap() error { return ErrPanic }

// Call runs fn and converts a panic into a *PanicError, logging the value
// and stack trace.
//
// Example:
//
//	tbl, err := recovery.Call(logger, "Read", func() (*query.Table, error) {
//	    return store.Read(ctx, symbol, opts)
//	})
func Call[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			var zero T
			result = zero
			err = &PanicError{Operation: operation, Value: r}
		}
	}()

	return fn()
}
