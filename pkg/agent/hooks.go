package agent

import (
	"github.com/harun/veda/internal/tracing"
	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/toolexec"
)

// Hooks receives lifecycle events from the runner. Every callback gets
// the SpanContext active at the time of the event. Implementations must
// return quickly; they run on the turn's goroutine.
//
// Embed NoopHooks and override only the callbacks you need.
type Hooks interface {
	OnTurnStart(span tracing.SpanContext, sessionKey, turnID string)
	OnTurnEnd(span tracing.SpanContext, result TurnResult)
	OnLLMCallStart(span tracing.SpanContext, provider string)
	OnStreamChunk(span tracing.SpanContext, chunk StreamChunk)
	OnLLMCallEnd(span tracing.SpanContext, response *Response, err error)
	OnToolCallStart(span tracing.SpanContext, call history.ToolCall)
	OnToolCallEnd(span tracing.SpanContext, call history.ToolCall, result toolexec.Result)
	OnSpinnerHint(span tracing.SpanContext, hint string)
	OnError(span tracing.SpanContext, err *AgentError)
}

// NoopHooks implements Hooks with empty callbacks.
type NoopHooks struct{}

func (NoopHooks) OnTurnStart(tracing.SpanContext, string, string)                      {}
func (NoopHooks) OnTurnEnd(tracing.SpanContext, TurnResult)                            {}
func (NoopHooks) OnLLMCallStart(tracing.SpanContext, string)                           {}
func (NoopHooks) OnStreamChunk(tracing.SpanContext, StreamChunk)                       {}
func (NoopHooks) OnLLMCallEnd(tracing.SpanContext, *Response, error)                   {}
func (NoopHooks) OnToolCallStart(tracing.SpanContext, history.ToolCall)                {}
func (NoopHooks) OnToolCallEnd(tracing.SpanContext, history.ToolCall, toolexec.Result) {}
func (NoopHooks) OnSpinnerHint(tracing.SpanContext, string)                            {}
func (NoopHooks) OnError(tracing.SpanContext, *AgentError)                             {}

var _ Hooks = NoopHooks{}
