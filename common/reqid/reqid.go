// Package reqid provides request ID generation and context propagation so a
// single query can be correlated across the pipeline and front-end logs.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// ctxKey is the unexported context key used to store the request ID.
type ctxKey struct{}

// New generates a unique request ID.
func New() string {
	return "q_" + uuid.NewString()
}

// WithRequestID returns a child context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from ctx, returning "" if absent.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
