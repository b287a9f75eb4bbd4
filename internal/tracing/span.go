package tracing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SpanContext holds the correlation identifiers for one logical operation
// (a turn, an LLM call, or a tool call). Immutable after creation.
type SpanContext struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
}

// NewRootSpan generates a fresh span context with a new 128-bit trace ID
// and 64-bit span ID. Root spans have no parent.
func NewRootSpan() SpanContext {
	return SpanContext{
		TraceID: randomHex(16),
		SpanID:  randomHex(8),
	}
}

// NewChildSpan derives a child span context: same trace ID, new span ID,
// parent set to the parent's span ID.
func NewChildSpan(parent SpanContext) SpanContext {
	return SpanContext{
		TraceID:      parent.TraceID,
		SpanID:       randomHex(8),
		ParentSpanID: parent.SpanID,
	}
}

// IsRoot reports whether the span has no parent.
func (sc SpanContext) IsRoot() bool {
	return sc.ParentSpanID == ""
}

// IsValid reports whether the span carries both identifiers.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID != "" && sc.SpanID != ""
}

// String renders the span context in traceID:spanID form.
func (sc SpanContext) String() string {
	return fmt.Sprintf("%s:%s", sc.TraceID, sc.SpanID)
}

// randomHex returns n random bytes as lowercase hex. Entropy-source failure
// is unrecoverable for the process.
func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("tracing: entropy source unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}
