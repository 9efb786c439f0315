// Package testutil provides common helpers for service and handler tests.
package testutil

import (
	"context"

	id "certo/pkg/domain"
	"certo/pkg/requestcontext"
)

// Ctx builds a request context with the given caller and logical clock, the
// state the middleware chain would normally establish.
func Ctx(caller id.Identity, clock uint64) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), caller)
	return requestcontext.WithClock(ctx, clock)
}

// CtxAt returns a copy of ctx with the logical clock advanced.
func CtxAt(ctx context.Context, clock uint64) context.Context {
	return requestcontext.WithClock(ctx, clock)
}
