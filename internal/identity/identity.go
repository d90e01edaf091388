// Package identity is the credential service: account registration, sign in,
// and current-user resolution for every other component.
//
// The current user travels in the request context (set by the API's auth
// middleware). Services receive a Provider instead of reaching for a global,
// so tests can substitute any identity they need.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotAuthenticated is returned by operations that require a current
	// user when there is none. Callers get an explicit error, never a silent
	// no-op.
	ErrNotAuthenticated = errors.New("not authenticated")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// Provider yields the current user's opaque identifier, or "none".
type Provider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

type ctxKey struct{}

// WithUser returns a context carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID extracts the authenticated user id from the context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// ContextProvider resolves the current user from the request context.
type ContextProvider struct{}

func (ContextProvider) CurrentUserID(ctx context.Context) (string, bool) {
	return UserID(ctx)
}

// Static is a fixed-identity provider, mainly for tests and tooling.
type Static string

func (s Static) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}
