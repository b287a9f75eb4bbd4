package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/veda/internal/config"
	"github.com/harun/veda/internal/tracing"
	"github.com/harun/veda/pkg/commandqueue"
	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/session"
	"github.com/harun/veda/pkg/tokens"
	"github.com/harun/veda/pkg/toolexec"
)

type scriptStep struct {
	response *Response
	err      error
}

// scriptedClient replays a fixed sequence of model responses and errors.
type scriptedClient struct {
	mu       sync.Mutex
	steps    []scriptStep
	requests []Request
}

func (c *scriptedClient) Provider() string { return "scripted" }

func (c *scriptedClient) Stream(ctx context.Context, request Request, onChunk func(StreamChunk)) (*Response, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.mu.Lock()
	idx := len(c.requests)
	c.requests = append(c.requests, request)
	c.mu.Unlock()

	if idx >= len(c.steps) {
		return nil, fmt.Errorf("unexpected model call %d", idx)
	}

	step := c.steps[idx]
	if step.err != nil {
		return nil, step.err
	}

	if onChunk != nil && step.response.Content != "" {
		for _, word := range strings.SplitAfter(step.response.Content, " ") {
			onChunk(StreamChunk{Text: word})
		}
	}

	return step.response, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *scriptedClient) request(i int) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

type fixedFactory struct {
	client ModelClient
}

func (f *fixedFactory) NewClient(config.AIProfile) (ModelClient, error) {
	return f.client, nil
}

// recordingFactory remembers which profiles it was asked to build
// clients for.
type recordingFactory struct {
	mu     sync.Mutex
	ids    []string
	client ModelClient
}

func (f *recordingFactory) NewClient(profile config.AIProfile) (ModelClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, profile.ID)
	return f.client, nil
}

// recordingHooks captures lifecycle events for assertions.
type recordingHooks struct {
	NoopHooks
	mu         sync.Mutex
	turnStarts int
	turnEnds   []TurnResult
	chunks     []string
	chunkSpans []tracing.SpanContext
	toolStarts []string
	errs       []*AgentError
}

func (h *recordingHooks) OnTurnStart(span tracing.SpanContext, sessionKey, turnID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turnStarts++
}

func (h *recordingHooks) OnTurnEnd(span tracing.SpanContext, result TurnResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turnEnds = append(h.turnEnds, result)
}

func (h *recordingHooks) OnStreamChunk(span tracing.SpanContext, chunk StreamChunk) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, chunk.Text)
	h.chunkSpans = append(h.chunkSpans, span)
}

func (h *recordingHooks) OnToolCallStart(span tracing.SpanContext, call history.ToolCall) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolStarts = append(h.toolStarts, call.Name)
}

func (h *recordingHooks) OnError(span tracing.SpanContext, err *AgentError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		Model:            "test-model",
		Temperature:      0.2,
		MaxTokens:        512,
		MaxRetries:       3,
		BaseDelayMs:      20,
		MaxDelayMs:       200,
		JitterFactor:     0.2,
		MaxIterations:    4,
		MaxParallelTools: 2,
		AutoSave:         true,
	}
}

func newTestRunner(t *testing.T, client ModelClient, hooks Hooks, mutate func(*Config)) (*Runner, *session.Store, *toolexec.Executor) {
	t.Helper()

	store, err := session.NewStore(session.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	executor := toolexec.New()
	queue := commandqueue.New()
	t.Cleanup(func() { queue.Close() })

	cfg := Config{
		Store:         store,
		Executor:      executor,
		Queue:         queue,
		Hooks:         hooks,
		Logger:        zerolog.Nop(),
		ClientFactory: &fixedFactory{client: client},
		Agent:         testAgentConfig(),
		Context:       config.ContextConfig{TokenBudget: 10000, ReserveTokens: 100},
		Tools:         config.ToolsConfig{TimeoutSeconds: 5},
		Profiles:      []config.AIProfile{{ID: "p1", Provider: "anthropic", APIKey: "sk-test", Priority: 1}},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	runner, err := NewRunner(cfg)
	require.NoError(t, err)
	return runner, store, executor
}

func finalAnswer(text string) scriptStep {
	return scriptStep{response: &Response{
		Content: text,
		Usage:   tokens.Usage{InputTokens: 10, OutputTokens: 5},
	}}
}

func TestNewRunner_Validation(t *testing.T) {
	store, err := session.NewStore(session.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	executor := toolexec.New()
	queue := commandqueue.New()
	defer queue.Close()

	base := Config{
		Store:    store,
		Executor: executor,
		Queue:    queue,
		Agent:    testAgentConfig(),
		Context:  config.ContextConfig{TokenBudget: 10000, ReserveTokens: 100},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing store", mutate: func(c *Config) { c.Store = nil }},
		{name: "missing executor", mutate: func(c *Config) { c.Executor = nil }},
		{name: "missing queue", mutate: func(c *Config) { c.Queue = nil }},
		{name: "empty model", mutate: func(c *Config) { c.Agent.Model = "" }},
		{name: "bad temperature", mutate: func(c *Config) { c.Agent.Temperature = 1.5 }},
		{name: "budget below reserve", mutate: func(c *Config) { c.Context.TokenBudget = 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := NewRunner(cfg)
			assert.Error(t, err)
		})
	}
}

func TestRunTurn_EmptyPrompt(t *testing.T) {
	client := &scriptedClient{}
	runner, _, _ := newTestRunner(t, client, nil, nil)

	_, err := runner.RunTurn(context.Background(), RunParams{})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRunTurn_SimpleCompletion(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{finalAnswer("hello there")}}
	hooks := &recordingHooks{}
	runner, store, _ := newTestRunner(t, client, hooks, nil)

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "hi"})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, "hello there", result.Response)
	assert.NotEmpty(t, result.SessionKey)
	assert.NotEmpty(t, result.TurnID)
	assert.Equal(t, 15, result.Usage.Total())

	// Streamed chunks reassemble the response, each tagged with a valid span.
	assert.Equal(t, "hello there", strings.Join(hooks.chunks, ""))
	for _, span := range hooks.chunkSpans {
		assert.True(t, span.IsValid())
	}
	assert.Equal(t, 1, hooks.turnStarts)
	require.Len(t, hooks.turnEnds, 1)
	assert.Equal(t, StateCompleted, hooks.turnEnds[0].State)

	// Auto-save persisted the transcript.
	stored, err := store.Resume(context.Background(), result.SessionKey)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, history.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, history.RoleAssistant, stored.Messages[1].Role)

	// Usage landed in the tracker.
	assert.Equal(t, 15, runner.Tracker().Totals(result.SessionKey).Total())
}

func TestRunTurn_ResumesExistingSession(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{finalAnswer("right, blue")}}
	runner, store, _ := newTestRunner(t, client, nil, nil)

	id, err := store.Save(context.Background(), &session.StoredSession{
		Messages: []history.Message{
			{ID: "m1", Role: history.RoleUser, Content: "my favorite color is blue"},
			{ID: "m2", Role: history.RoleAssistant, Content: "noted"},
		},
	})
	require.NoError(t, err)

	result, err := runner.RunTurn(context.Background(), RunParams{SessionID: id, Prompt: "what is it?"})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	// The model saw the prior transcript plus the new prompt.
	req := client.request(0)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "my favorite color is blue", req.Messages[0].Content)
	assert.Equal(t, "what is it?", req.Messages[2].Content)

	stored, err := store.Resume(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 4)
}

func TestRunTurn_ToolLoop_RequestOrderPreserved(t *testing.T) {
	toolCalls := []history.ToolCall{
		{ID: "tc-glob", Name: "glob", Parameters: map[string]interface{}{"pattern": "**/*.ts"}},
		{ID: "tc-read", Name: "read", Parameters: map[string]interface{}{"path": "a.ts"}},
	}
	client := &scriptedClient{steps: []scriptStep{
		{response: &Response{
			Content:   "let me look",
			ToolCalls: toolCalls,
			Usage:     tokens.Usage{InputTokens: 10, OutputTokens: 5},
		}},
		finalAnswer("a.ts and b.ts exist; a.ts exports foo"),
	}}
	runner, store, executor := newTestRunner(t, client, nil, nil)

	// glob is slow, read is fast: completion order inverts request order.
	globStarted := make(chan struct{})
	readDone := make(chan struct{})
	require.NoError(t, executor.Register(toolexec.ToolDefinition{
		Name:        "glob",
		Description: "Find files",
		Parameters: []toolexec.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Glob pattern", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			close(globStarted)
			<-readDone
			return "a.ts\nb.ts", nil
		},
	}))
	require.NoError(t, executor.Register(toolexec.ToolDefinition{
		Name:        "read",
		Description: "Read a file",
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "File path", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			<-globStarted
			defer close(readDone)
			return "export const foo = 1", nil
		},
	}))

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "what ts files are there?"})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.Len(t, result.ToolCalls, 2)

	stored, err := store.Resume(context.Background(), result.SessionKey)
	require.NoError(t, err)

	// user, assistant with 2 tool calls, glob result, read result,
	// final assistant answer. Tool results sit in request order even
	// though read finished first.
	require.Len(t, stored.Messages, 5)
	assert.Equal(t, history.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, history.RoleAssistant, stored.Messages[1].Role)
	require.Len(t, stored.Messages[1].ToolCalls, 2)
	assert.Equal(t, history.RoleTool, stored.Messages[2].Role)
	assert.Equal(t, "tc-glob", stored.Messages[2].ToolCallID)
	assert.Contains(t, stored.Messages[2].Content, "a.ts")
	assert.Equal(t, history.RoleTool, stored.Messages[3].Role)
	assert.Equal(t, "tc-read", stored.Messages[3].ToolCallID)
	assert.Contains(t, stored.Messages[3].Content, "foo")
	assert.Equal(t, history.RoleAssistant, stored.Messages[4].Role)
	assert.Equal(t, "a.ts and b.ts exist; a.ts exports foo", stored.Messages[4].Content)
}

func TestRunTurn_ToolValidationErrorFedBack(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{response: &Response{
			ToolCalls: []history.ToolCall{
				{ID: "tc-1", Name: "read", Parameters: map[string]interface{}{"wrong": true}},
			},
			Usage: tokens.Usage{InputTokens: 10, OutputTokens: 5},
		}},
		finalAnswer("sorry, let me fix that"),
	}}
	runner, _, executor := newTestRunner(t, client, nil, nil)

	require.NoError(t, executor.Register(toolexec.ToolDefinition{
		Name:        "read",
		Description: "Read a file",
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "File path", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "content", nil
		},
	}))

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "read it"})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	// The second model call saw the validation error as a tool message.
	require.Equal(t, 2, client.callCount())
	secondReq := client.request(1)
	last := secondReq.Messages[len(secondReq.Messages)-1]
	assert.Equal(t, history.RoleTool, last.Role)
	assert.Contains(t, last.Content, "validation_error")
}

func TestRunTurn_PromptExceedsContextBudget(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{finalAnswer("unreachable")}}
	runner, _, _ := newTestRunner(t, client, nil, func(c *Config) {
		c.Context = config.ContextConfig{TokenBudget: 200, ReserveTokens: 100}
	})

	result, err := runner.RunTurn(context.Background(), RunParams{
		Prompt: strings.Repeat("z", 4000),
	})
	require.Error(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, client.callCount())
}

func TestRunTurn_RetryThenSucceed(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{err: errors.New("429 rate limit exceeded")},
		{err: errors.New("503 service unavailable")},
		finalAnswer("finally"),
	}}
	runner, _, _ := newTestRunner(t, client, nil, nil)

	start := time.Now()
	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "hi"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 3, client.callCount())

	// Two backoffs: 20ms and 40ms nominal, jitter factor 0.2 means at
	// least 48ms total.
	assert.GreaterOrEqual(t, elapsed, 45*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRunTurn_RetriesExhausted(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{err: errors.New("429 rate limit exceeded")},
		{err: errors.New("429 rate limit exceeded")},
		{err: errors.New("429 rate limit exceeded")},
	}}
	hooks := &recordingHooks{}
	runner, _, _ := newTestRunner(t, client, hooks, nil)

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "hi"})
	require.Error(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, client.callCount())

	require.Len(t, hooks.errs, 1)
	assert.Equal(t, KindNetwork, hooks.errs[0].Kind)
}

func TestRunTurn_AuthErrorNotRetried(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{err: errors.New("401 invalid api key")},
	}}
	runner, _, _ := newTestRunner(t, client, nil, nil)

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "hi"})
	require.Error(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, KindAuthentication, KindOf(err))
	assert.Equal(t, 1, client.callCount())
}

func TestSelectClient_PrefersLowestPriority(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{finalAnswer("ok")}}
	factory := &recordingFactory{client: client}
	runner, _, _ := newTestRunner(t, client, nil, func(c *Config) {
		c.ClientFactory = factory
		c.Profiles = []config.AIProfile{
			{ID: "backup", Provider: "openai", APIKey: "sk-b", Priority: 3},
			{ID: "primary", Provider: "anthropic", APIKey: "sk-a", Priority: 1},
			{ID: "secondary", Provider: "anthropic", APIKey: "sk-c", Priority: 2},
		}
	})

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)

	require.NotEmpty(t, factory.ids)
	assert.Equal(t, "primary", factory.ids[0])
}

func TestSortProfilesByPriority(t *testing.T) {
	profiles := []config.AIProfile{
		{ID: "c", Priority: 5},
		{ID: "a", Priority: 1},
		{ID: "b", Priority: 3},
	}
	sortProfilesByPriority(profiles)

	assert.Equal(t, "a", profiles[0].ID)
	assert.Equal(t, "b", profiles[1].ID)
	assert.Equal(t, "c", profiles[2].ID)
}

func TestRunTurn_NoProfiles(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{finalAnswer("unreachable")}}
	runner, _, _ := newTestRunner(t, client, nil, func(c *Config) {
		c.Profiles = nil
	})

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, KindProviderNotConfigured, KindOf(err))
}

func TestRunTurn_IterationLimit(t *testing.T) {
	loopCall := scriptStep{response: &Response{
		ToolCalls: []history.ToolCall{{ID: "tc", Name: "noop", Parameters: map[string]interface{}{}}},
		Usage:     tokens.Usage{InputTokens: 1, OutputTokens: 1},
	}}
	client := &scriptedClient{steps: []scriptStep{loopCall, loopCall}}
	runner, _, executor := newTestRunner(t, client, nil, func(c *Config) {
		c.Agent.MaxIterations = 2
	})

	require.NoError(t, executor.Register(toolexec.ToolDefinition{
		Name:        "noop",
		Description: "Does nothing",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "ok", nil
		},
	}))

	result, err := runner.RunTurn(context.Background(), RunParams{Prompt: "loop forever"})
	require.Error(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, KindIterationLimit, KindOf(err))
}

func TestRunTurn_CancellationWithInFlightTools(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{response: &Response{
			ToolCalls: []history.ToolCall{
				{ID: "tc-1", Name: "wait", Parameters: map[string]interface{}{}},
				{ID: "tc-2", Name: "wait", Parameters: map[string]interface{}{}},
			},
			Usage: tokens.Usage{InputTokens: 1, OutputTokens: 1},
		}},
	}}
	runner, _, executor := newTestRunner(t, client, nil, nil)

	var startedMu sync.Mutex
	started := 0
	bothStarted := make(chan struct{})
	require.NoError(t, executor.Register(toolexec.ToolDefinition{
		Name:        "wait",
		Description: "Blocks until cancelled",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			startedMu.Lock()
			started++
			if started == 2 {
				close(bothStarted)
			}
			startedMu.Unlock()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	sessionID := "cancel-test"
	go func() {
		<-bothStarted
		runner.Abort(sessionID)
	}()

	done := make(chan TurnResult, 1)
	go func() {
		result, _ := runner.RunTurn(context.Background(), RunParams{SessionID: sessionID, Prompt: "wait"})
		done <- result
	}()

	select {
	case result := <-done:
		assert.Equal(t, StateCancelled, result.State)
	case <-time.After(5 * time.Second):
		t.Fatal("turn hung after cancellation")
	}

	assert.False(t, runner.IsRunning(sessionID))
}

func TestRunTurn_SerializesTurnsPerSession(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{finalAnswer("one"), finalAnswer("two")}}
	runner, store, _ := newTestRunner(t, client, nil, nil)

	sessionID := "serial"
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := runner.RunTurn(context.Background(), RunParams{SessionID: sessionID, Prompt: "go"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.Resume(context.Background(), sessionID)
	require.NoError(t, err)
	// Two full turns: 2 user messages, 2 assistant messages, never
	// interleaved mid-turn.
	require.Len(t, stored.Messages, 4)
	assert.Equal(t, history.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, history.RoleAssistant, stored.Messages[1].Role)
	assert.Equal(t, history.RoleUser, stored.Messages[2].Role)
	assert.Equal(t, history.RoleAssistant, stored.Messages[3].Role)
}

func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		JitterFactor: 0.25,
	}

	for attempt := 0; attempt < 8; attempt++ {
		nominal := 100 * time.Millisecond
		for i := 0; i < attempt; i++ {
			nominal *= 2
		}
		if nominal > time.Second {
			nominal = time.Second
		}

		for i := 0; i < 50; i++ {
			delay := policy.Delay(attempt)
			assert.GreaterOrEqual(t, delay, time.Duration(float64(nominal)*0.75))
			assert.LessOrEqual(t, delay, time.Duration(float64(nominal)*1.25))
		}
	}
}

func TestRetryPolicy_NoJitter(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, policy.Delay(0))
	assert.Equal(t, 20*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 40*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 40*time.Millisecond, policy.Delay(5))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil", err: nil, retryable: false},
		{name: "rate limit", err: errors.New("429 rate limit"), retryable: true},
		{name: "server error", err: errors.New("502 bad gateway"), retryable: true},
		{name: "conn reset", err: errors.New("read: ECONNRESET"), retryable: true},
		{name: "auth", err: errors.New("401 unauthorized"), retryable: false},
		{name: "invalid key", err: errors.New("invalid api key"), retryable: false},
		{name: "context canceled", err: context.Canceled, retryable: false},
		{name: "unknown", err: errors.New("something odd"), retryable: false},
		{name: "agent error network", err: &AgentError{Kind: KindNetwork, Message: "x"}, retryable: true},
		{name: "agent error validation", err: &AgentError{Kind: KindValidation, Message: "x"}, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestAgentError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewAgentError(KindIO, tracing.NewRootSpan(), "save failed", inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, KindIO, KindOf(err))
	assert.Contains(t, err.Error(), "io")
	assert.Contains(t, err.Error(), "save failed")
	assert.True(t, err.Span.IsValid())
}
