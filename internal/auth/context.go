// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// identityContextKey is the key type for storing an Identity in context.Context.
type identityContextKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// FromContext retrieves the Identity from the context. The second return
// value is false if no identity is present.
func FromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityContextKey{})
	if val == nil {
		return Identity{}, false
	}
	identity, ok := val.(Identity)
	return identity, ok
}
