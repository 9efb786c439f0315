// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// The substrate authenticates every caller and stamps each operation with a
// logical clock; middleware injects both here so services can read them
// without importing net/http.
//
// Usage in services (read values):
//
//	caller := requestcontext.Caller(ctx)
//	now := requestcontext.Clock(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCaller(ctx, identity)
//	ctx = requestcontext.WithClock(ctx, height)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithClock(ctx, 1000)
package requestcontext

import (
	"context"
	"time"

	id "certo/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	callerKey    struct{}
	requestIDKey struct{}
	clockKey     struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyCaller    = callerKey{}
	ContextKeyRequestID = requestIDKey{}
	ContextKeyClock     = clockKey{}
)

// Caller retrieves the authenticated principal from the context.
// Returns the zero Identity if not set.
func Caller(ctx context.Context) id.Identity {
	if caller, ok := ctx.Value(ContextKeyCaller).(id.Identity); ok {
		return caller
	}
	return id.Identity("")
}

// WithCaller injects the authenticated principal into the context.
func WithCaller(ctx context.Context, caller id.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// RequestID retrieves the correlation id from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Clock retrieves the logical clock for this operation. All expiry and
// window math uses this value, never the wall clock directly. Falls back to
// wall-clock seconds for non-HTTP contexts (workers, CLI, tests that forgot
// to inject one).
func Clock(ctx context.Context) uint64 {
	if t, ok := ctx.Value(ContextKeyClock).(uint64); ok {
		return t
	}
	return uint64(time.Now().Unix())
}

// WithClock injects a logical clock value into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClock(ctx context.Context, clock uint64) context.Context {
	return context.WithValue(ctx, ContextKeyClock, clock)
}
