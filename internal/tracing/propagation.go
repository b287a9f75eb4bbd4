package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if sc, ok := SpanFromContext(ctx); ok {
		logger = logger.With().
			Str("trace_id", sc.TraceID).
			Str("span_id", sc.SpanID).
			Logger()
	}
	if sessionKey := GetSessionKey(ctx); sessionKey != "" {
		logger = logger.With().Str("session_key", sessionKey).Logger()
	}
	if turnID := GetTurnID(ctx); turnID != "" {
		logger = logger.With().Str("turn_id", turnID).Logger()
	}
	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext merges tracing information from source context into target context
// Useful when handing work to a goroutine with its own lifecycle context
func MergeContext(target, source context.Context) context.Context {
	if _, ok := SpanFromContext(target); !ok {
		if sc, found := SpanFromContext(source); found {
			target = WithSpan(target, sc)
		}
	}
	if GetSessionKey(target) == "" {
		if sessionKey := GetSessionKey(source); sessionKey != "" {
			target = WithSessionKey(target, sessionKey)
		}
	}
	if GetTurnID(target) == "" {
		if turnID := GetTurnID(source); turnID != "" {
			target = WithTurnID(target, turnID)
		}
	}
	return target
}
