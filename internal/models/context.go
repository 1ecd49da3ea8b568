package models

import (
	"context"
)

type correlationContextKey struct{}

// WithCorrelationId attaches a correlation id to a context so every ledger
// write and audit event produced for one request carries the same id.
func WithCorrelationId(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, correlationContextKey{}, correlationId)
}

// CorrelationIdFrom retrieves the correlation id from a context, or "" if absent.
func CorrelationIdFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationContextKey{}).(string)
	return id
}
