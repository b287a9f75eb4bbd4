package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/veda/internal/tracing"
)

// ErrorKind classifies terminal agent failures.
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation"
	KindProviderNotConfigured ErrorKind = "provider_not_configured"
	KindAuthentication        ErrorKind = "authentication"
	KindNetwork               ErrorKind = "network"
	KindToolExecution         ErrorKind = "tool_execution_failed"
	KindCancelled             ErrorKind = "cancelled"
	KindIterationLimit        ErrorKind = "iteration_limit_exceeded"
	KindIO                    ErrorKind = "io"
	KindNotFound              ErrorKind = "not_found"
)

// AgentError is the structured error surfaced for terminal failures. It
// carries the span that was active when the failure happened so the
// caller can correlate it with telemetry.
type AgentError struct {
	Kind    ErrorKind
	Message string
	Span    tracing.SpanContext
	Err     error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError builds an AgentError with the given kind and span.
func NewAgentError(kind ErrorKind, span tracing.SpanContext, message string, err error) *AgentError {
	return &AgentError{Kind: kind, Message: message, Span: span, Err: err}
}

// KindOf returns the ErrorKind of err, or empty when err is not an
// AgentError.
func KindOf(err error) ErrorKind {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	return ""
}

// IsRetryable reports whether a model-call error is transient. Auth and
// validation failures are permanent; network hiccups, rate limits, and
// server errors are worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch KindOf(err) {
	case KindNetwork:
		return true
	case "":
		// Fall through to message heuristics below.
	default:
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication") {
		return false
	}

	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "timeout") {
		return true
	}

	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded") {
		return true
	}

	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") {
		return true
	}

	return false
}

// classifyCallError maps a model-call error to the kind reported when
// the turn fails.
func classifyCallError(err error) ErrorKind {
	if kind := KindOf(err); kind != "" {
		return kind
	}

	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication") {
		return KindAuthentication
	}
	return KindNetwork
}
