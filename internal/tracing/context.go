package tracing

import (
	"context"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// SpanKey is the context key for the active span context
	SpanKey ContextKey = "span"
	// SessionKeyKey is the context key for session key
	SessionKeyKey ContextKey = "session_key"
	// TurnIDKey is the context key for the current turn ID
	TurnIDKey ContextKey = "turn_id"
)

// WithSpan attaches a span context to the context
func WithSpan(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, SpanKey, sc)
}

// WithSessionKey adds a session key to the context
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, SessionKeyKey, sessionKey)
}

// WithTurnID adds a turn ID to the context
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, TurnIDKey, turnID)
}

// SpanFromContext retrieves the active span context, if any
func SpanFromContext(ctx context.Context) (SpanContext, bool) {
	if sc, ok := ctx.Value(SpanKey).(SpanContext); ok {
		return sc, true
	}
	return SpanContext{}, false
}

// GetTraceID retrieves the trace ID of the active span from the context
func GetTraceID(ctx context.Context) string {
	if sc, ok := SpanFromContext(ctx); ok {
		return sc.TraceID
	}
	return ""
}

// GetSpanID retrieves the span ID of the active span from the context
func GetSpanID(ctx context.Context) string {
	if sc, ok := SpanFromContext(ctx); ok {
		return sc.SpanID
	}
	return ""
}

// GetSessionKey retrieves the session key from the context
func GetSessionKey(ctx context.Context) string {
	if sessionKey, ok := ctx.Value(SessionKeyKey).(string); ok {
		return sessionKey
	}
	return ""
}

// GetTurnID retrieves the turn ID from the context
func GetTurnID(ctx context.Context) string {
	if turnID, ok := ctx.Value(TurnIDKey).(string); ok {
		return turnID
	}
	return ""
}

// StartSpan creates a span context for an operation and attaches it to the
// context. If the context already carries a span, the new span is its child;
// otherwise a root span is created.
func StartSpan(ctx context.Context) (context.Context, SpanContext) {
	var sc SpanContext
	if parent, ok := SpanFromContext(ctx); ok {
		sc = NewChildSpan(parent)
	} else {
		sc = NewRootSpan()
	}
	return WithSpan(ctx, sc), sc
}
