// Package auth provides bearer-token authentication for the segment store
// Flight server.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	// ErrUnauthenticated is returned when a token cannot be validated.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied is returned when an identity may not read a symbol.
	ErrPermissionDenied = errors.New("permission denied")
)

// Authenticator validates bearer tokens and returns user identity.
// Implementations MUST be goroutine-safe.
type Authenticator interface {
	// Authenticate validates a bearer token and returns user identity.
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

// SymbolAuthorizer is an optional interface an Authenticator can implement
// to restrict which symbols an identity may read. It is consulted after
// Authenticate, with the identity already in ctx.
type SymbolAuthorizer interface {
	AuthorizeSymbol(ctx context.Context, symbol string) error
}

// BearerAuth creates an Authenticator from a validation function.
func BearerAuth(validate func(token string) (identity string, err error)) Authenticator {
	return bearerFunc(validate)
}

type bearerFunc func(token string) (string, error)

func (f bearerFunc) Authenticate(_ context.Context, token string) (string, error) {
	return f(token)
}

// StaticTokens authenticates against a fixed token to identity table.
// Optional grants restrict identities to listed symbols; identities without
// a grant entry may read every symbol.
type StaticTokens struct {
	Tokens map[string]string
	Grants map[string][]string
}

// Authenticate implements Authenticator.
func (s *StaticTokens) Authenticate(_ context.Context, token string) (string, error) {
	for known, identity := range s.Tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return identity, nil
		}
	}
	return "", ErrUnauthenticated
}

// AuthorizeSymbol implements SymbolAuthorizer.
func (s *StaticTokens) AuthorizeSymbol(ctx context.Context, symbol string) error {
	identity := IdentityFromContext(ctx)
	grants, ok := s.Grants[identity]
	if !ok {
		return nil
	}
	for _, g := range grants {
		if g == symbol {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not read %s", ErrPermissionDenied, identity, symbol)
}

// Authorize checks symbol access when authenticator implements
// SymbolAuthorizer. It allows everything otherwise.
func Authorize(ctx context.Context, authenticator Authenticator, symbol string) error {
	if a, ok := authenticator.(SymbolAuthorizer); ok {
		return a.AuthorizeSymbol(ctx, symbol)
	}
	return nil
}

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a new context carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated identity, or an empty
// string for unauthenticated requests.
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey).(string)
	return identity
}

const bearerPrefix = "Bearer "

// ExtractToken reads the bearer token from the incoming "authorization"
// header. A missing header yields an empty token.
func ExtractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}
	headers := md.Get("authorization")
	if len(headers) == 0 {
		return "", nil
	}

	header := headers[0]
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", status.Error(codes.Unauthenticated, "authorization header must use Bearer scheme")
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	if token == "" {
		return "", status.Error(codes.Unauthenticated, "bearer token is empty")
	}
	return token, nil
}

// ValidateToken authenticates token and returns ctx with the identity set.
func ValidateToken(ctx context.Context, token string, authenticator Authenticator) (context.Context, error) {
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	identity, err := authenticator.Authenticate(ctx, token)
	if err != nil {
		return ctx, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	return WithIdentity(ctx, identity), nil
}
