package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/veda/internal/config"
	"github.com/harun/veda/internal/observability"
	"github.com/harun/veda/internal/tracing"
	"github.com/harun/veda/pkg/commandqueue"
	"github.com/harun/veda/pkg/contextmgr"
	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/session"
	"github.com/harun/veda/pkg/tokens"
	"github.com/harun/veda/pkg/toolexec"
)

// Runner orchestrates agent turns
type Runner struct {
	store         *session.Store
	executor      *toolexec.Executor
	queue         *commandqueue.CommandQueue
	tracker       *tokens.Tracker
	estimator     tokens.Estimator
	hooks         Hooks
	logger        zerolog.Logger
	clientFactory ClientFactory

	agentCfg   config.AgentConfig
	contextCfg config.ContextConfig
	toolsCfg   config.ToolsConfig
	retry      RetryPolicy

	profiles []config.AIProfile
	authMu   sync.RWMutex

	// Active turns for abort capability
	activeRuns map[string]context.CancelFunc
	runsMu     sync.Mutex
}

// Config holds runner configuration
type Config struct {
	Store         *session.Store
	Executor      *toolexec.Executor
	Queue         *commandqueue.CommandQueue
	Tracker       *tokens.Tracker
	Estimator     tokens.Estimator
	Hooks         Hooks
	Logger        zerolog.Logger
	ClientFactory ClientFactory

	Agent    config.AgentConfig
	Context  config.ContextConfig
	Tools    config.ToolsConfig
	Profiles []config.AIProfile
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("command queue is required")
	}
	if cfg.Agent.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if cfg.Context.TokenBudget <= cfg.Context.ReserveTokens {
		return nil, fmt.Errorf("token budget must exceed reserve tokens")
	}

	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NoopHooks{}
	}
	estimator := cfg.Estimator
	if estimator == nil {
		estimator = tokens.NewHeuristicEstimator()
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = tokens.NewTracker()
	}
	clientFactory := cfg.ClientFactory
	if clientFactory == nil {
		clientFactory = &DefaultClientFactory{}
	}

	return &Runner{
		store:         cfg.Store,
		executor:      cfg.Executor,
		queue:         cfg.Queue,
		tracker:       tracker,
		estimator:     estimator,
		hooks:         hooks,
		logger:        cfg.Logger,
		clientFactory: clientFactory,
		agentCfg:      cfg.Agent,
		contextCfg:    cfg.Context,
		toolsCfg:      cfg.Tools,
		retry:         RetryPolicyFromConfig(cfg.Agent),
		profiles:      cfg.Profiles,
		activeRuns:    make(map[string]context.CancelFunc),
	}, nil
}

// RunTurn executes one turn. Turns for the same session are serialized
// through the session's queue lane.
func (r *Runner) RunTurn(ctx context.Context, params RunParams) (TurnResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if params.Prompt == "" {
		return TurnResult{}, NewAgentError(KindValidation, tracing.SpanContext{}, "prompt cannot be empty", nil)
	}

	sessionID := params.SessionID
	if sessionID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return TurnResult{}, fmt.Errorf("failed to generate session id: %w", err)
		}
		sessionID = id
	}

	turnID, err := gonanoid.New()
	if err != nil {
		return TurnResult{}, fmt.Errorf("failed to generate turn id: %w", err)
	}

	ctx = tracing.WithSessionKey(ctx, sessionID)
	ctx = tracing.WithTurnID(ctx, turnID)
	ctx, turnSpan := tracing.StartSpan(ctx)

	result, err := r.queue.EnqueueWithContext(ctx, commandqueue.SessionLane(sessionID), func(taskCtx context.Context) (interface{}, error) {
		return r.executeTurn(taskCtx, params, sessionID, turnID, turnSpan)
	}, nil)

	if err != nil {
		if turn, ok := result.(TurnResult); ok {
			return turn, err
		}
		return TurnResult{State: StateFailed, SessionKey: sessionID, TurnID: turnID}, err
	}

	return result.(TurnResult), nil
}

// Abort cancels a running turn for a session
func (r *Runner) Abort(sessionID string) {
	r.runsMu.Lock()
	defer r.runsMu.Unlock()

	cancel, exists := r.activeRuns[sessionID]
	if !exists {
		return
	}

	r.logger.Info().Str("session_key", sessionID).Msg("Aborting turn")
	cancel()
	delete(r.activeRuns, sessionID)
}

// IsRunning reports whether a turn is in flight for a session
func (r *Runner) IsRunning(sessionID string) bool {
	r.runsMu.Lock()
	defer r.runsMu.Unlock()

	_, exists := r.activeRuns[sessionID]
	return exists
}

// Tracker exposes the token tracker for callers that report usage.
func (r *Runner) Tracker() *tokens.Tracker {
	return r.tracker
}

// executeTurn drives the state machine for one turn
func (r *Runner) executeTurn(ctx context.Context, params RunParams, sessionID, turnID string, turnSpan tracing.SpanContext) (TurnResult, error) {
	logger := tracing.LoggerFromContext(ctx, r.logger)

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.runsMu.Lock()
	r.activeRuns[sessionID] = cancel
	r.runsMu.Unlock()
	defer func() {
		r.runsMu.Lock()
		delete(r.activeRuns, sessionID)
		r.runsMu.Unlock()
	}()

	start := time.Now()
	result := TurnResult{State: StateIdle, SessionKey: sessionID, TurnID: turnID}
	defer func() {
		observability.RecordTurn(string(result.State), time.Since(start))
	}()

	r.hooks.OnTurnStart(turnSpan, sessionID, turnID)

	hist, err := r.loadHistory(turnCtx, sessionID)
	if err != nil {
		return r.fail(turnSpan, &result, err)
	}

	if _, err := hist.Append(history.Message{Role: history.RoleUser, Content: params.Prompt}); err != nil {
		return r.fail(turnSpan, &result, NewAgentError(KindValidation, turnSpan, "invalid user message", err))
	}

	mgr, err := contextmgr.New(hist, r.estimator, contextmgr.Config{
		Budget: r.contextCfg.TokenBudget - r.contextCfg.ReserveTokens,
		Policy: contextmgr.TruncationPolicy(r.contextCfg.TruncationPolicy),
		Logger: logger,
	})
	if err != nil {
		return r.fail(turnSpan, &result, NewAgentError(KindValidation, turnSpan, "invalid context configuration", err))
	}

	toolSpecs, err := r.buildToolSpecs(params.Tools)
	if err != nil {
		return r.fail(turnSpan, &result, NewAgentError(KindValidation, turnSpan, "invalid tool selection", err))
	}

	client, err := r.selectClient()
	if err != nil {
		return r.fail(turnSpan, &result, err)
	}

	var lastWindow contextmgr.Window

	maxIterations := r.agentCfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 16
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		if turnCtx.Err() != nil {
			return r.cancelled(turnSpan, &result)
		}

		result.State = StateDispatchingLLM
		r.hooks.OnSpinnerHint(turnSpan, "Thinking...")

		window, err := mgr.BuildWindow(r.agentCfg.SystemPrompt)
		if err != nil {
			return r.fail(turnSpan, &result, NewAgentError(KindValidation, turnSpan, "failed to build context window", err))
		}
		lastWindow = window

		messages, err := mgr.Resolve(window.Pointers)
		if err != nil {
			return r.fail(turnSpan, &result, NewAgentError(KindValidation, turnSpan, "failed to resolve context window", err))
		}

		response, err := r.callModelWithRetry(turnCtx, client, Request{
			Model:        r.agentCfg.Model,
			SystemPrompt: r.agentCfg.SystemPrompt,
			Messages:     messages,
			Tools:        toolSpecs,
			Temperature:  r.agentCfg.Temperature,
			MaxTokens:    r.agentCfg.MaxTokens,
		})
		if err != nil {
			if turnCtx.Err() != nil || errors.Is(err, context.Canceled) {
				return r.cancelled(turnSpan, &result)
			}
			return r.fail(turnSpan, &result, err)
		}

		result.Usage = result.Usage.Add(response.Usage)
		r.tracker.Record(sessionID, response.Usage)

		if _, err := hist.Append(history.Message{
			Role:      history.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		}); err != nil {
			return r.fail(turnSpan, &result, NewAgentError(KindValidation, turnSpan, "invalid assistant message", err))
		}

		if len(response.ToolCalls) == 0 {
			result.State = StateCompleted
			result.Response = response.Content

			if r.agentCfg.AutoSave {
				if err := r.saveSession(turnCtx, sessionID, hist, lastWindow); err != nil {
					logger.Error().Err(err).Msg("Failed to auto-save session")
				}
			}

			logger.Info().
				Int("iterations", iteration+1).
				Int("tool_calls", len(result.ToolCalls)).
				Msg("Turn completed")
			r.hooks.OnTurnEnd(turnSpan, result)
			return result, nil
		}

		result.State = StateDispatchingTools
		result.ToolCalls = append(result.ToolCalls, response.ToolCalls...)
		r.hooks.OnSpinnerHint(turnSpan, fmt.Sprintf("Running %d tool(s)...", len(response.ToolCalls)))

		toolResults := r.dispatchTools(turnCtx, response.ToolCalls, params, sessionID, turnID)

		// Results are appended in request order regardless of
		// completion order.
		for i, call := range response.ToolCalls {
			if _, err := hist.Append(history.Message{
				Role:       history.RoleTool,
				Content:    toolResultContent(toolResults[i]),
				ToolCallID: call.ID,
			}); err != nil {
				return r.fail(turnSpan, &result, NewAgentError(KindValidation, turnSpan, "invalid tool result message", err))
			}
		}

		if turnCtx.Err() != nil {
			return r.cancelled(turnSpan, &result)
		}
	}

	return r.fail(turnSpan, &result, NewAgentError(
		KindIterationLimit,
		turnSpan,
		fmt.Sprintf("turn exceeded %d iterations without converging", maxIterations),
		nil,
	))
}

// loadHistory hydrates a history from the stored session, or starts an
// empty one for new sessions.
func (r *Runner) loadHistory(ctx context.Context, sessionID string) (*history.History, error) {
	hist := history.New(sessionID)

	stored, err := r.store.Resume(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return hist, nil
		}
		span, _ := tracing.SpanFromContext(ctx)
		return nil, NewAgentError(KindIO, span, "failed to load session", err)
	}

	hist.Restore(stored.Messages)
	return hist, nil
}

// saveSession persists the turn's history and window pointers
func (r *Runner) saveSession(ctx context.Context, sessionID string, hist *history.History, window contextmgr.Window) error {
	_, err := r.store.Save(ctx, &session.StoredSession{
		ID:              sessionID,
		Messages:        hist.Snapshot(),
		ContextPointers: window.Pointers,
	})
	return err
}

// selectClient picks the highest-priority profile with a working client
func (r *Runner) selectClient() (ModelClient, error) {
	r.authMu.RLock()
	profiles := make([]config.AIProfile, len(r.profiles))
	copy(profiles, r.profiles)
	r.authMu.RUnlock()

	if len(profiles) == 0 {
		return nil, NewAgentError(KindProviderNotConfigured, tracing.SpanContext{}, "no AI profiles configured", nil)
	}

	sortProfilesByPriority(profiles)

	var lastErr error
	for _, profile := range profiles {
		client, err := r.clientFactory.NewClient(profile)
		if err != nil {
			lastErr = err
			r.logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create model client")
			continue
		}
		return client, nil
	}

	return nil, NewAgentError(KindProviderNotConfigured, tracing.SpanContext{}, "no usable AI profile", lastErr)
}

// buildToolSpecs converts registered tools into model-facing specs. A
// nil name list exposes every registered tool.
func (r *Runner) buildToolSpecs(names []string) ([]ToolSpec, error) {
	if names == nil {
		names = r.executor.List()
	}

	specs := make([]ToolSpec, 0, len(names))
	for _, name := range names {
		def := r.executor.Get(name)
		if def == nil {
			return nil, fmt.Errorf("tool not found: %s", name)
		}

		properties := make(map[string]interface{})
		required := []string{}
		for _, param := range def.Parameters {
			properties[param.Name] = map[string]interface{}{
				"type":        param.Type,
				"description": param.Description,
			}
			if param.Required {
				required = append(required, param.Name)
			}
		}

		schema := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}

		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}

	return specs, nil
}

// callModelWithRetry streams a model call, retrying transient failures
// with exponential backoff and jitter. Each attempt gets its own child
// span.
func (r *Runner) callModelWithRetry(ctx context.Context, client ModelClient, request Request) (*Response, error) {
	maxRetries := r.retry.MaxRetries

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		callCtx, callSpan := tracing.StartSpan(ctx)
		logger := tracing.LoggerFromContext(callCtx, r.logger)

		r.hooks.OnLLMCallStart(callSpan, client.Provider())
		callStart := time.Now()

		response, err := client.Stream(callCtx, request, func(chunk StreamChunk) {
			r.hooks.OnStreamChunk(callSpan, chunk)
		})

		observability.RecordLLMCall(client.Provider(), time.Since(callStart), err == nil)
		r.hooks.OnLLMCallEnd(callSpan, response, err)

		if err == nil {
			return response, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, NewAgentError(KindCancelled, callSpan, "model call cancelled", ctx.Err())
		}
		if !IsRetryable(err) {
			return nil, NewAgentError(classifyCallError(err), callSpan, "model call failed", err)
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := r.retry.Delay(attempt)
		observability.RecordLLMRetry(client.Provider())
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying model call")

		select {
		case <-ctx.Done():
			return nil, NewAgentError(KindCancelled, callSpan, "model call cancelled during backoff", ctx.Err())
		case <-time.After(delay):
		}
	}

	span, _ := tracing.SpanFromContext(ctx)
	return nil, NewAgentError(
		classifyCallError(lastErr),
		span,
		fmt.Sprintf("model call failed after %d attempts", maxRetries),
		lastErr,
	)
}

// dispatchTools runs the turn's tool calls concurrently, bounded by
// MaxParallelTools, and returns results indexed by request order.
func (r *Runner) dispatchTools(ctx context.Context, calls []history.ToolCall, params RunParams, sessionID, turnID string) []toolexec.Result {
	results := make([]toolexec.Result, len(calls))

	maxParallel := r.agentCfg.MaxParallelTools
	if maxParallel <= 0 {
		maxParallel = 4
	}
	sem := make(chan struct{}, maxParallel)

	timeout := time.Duration(r.toolsCfg.TimeoutSeconds) * time.Second
	policy := params.Policy
	if policy == nil && (len(r.toolsCfg.Policy.Allow) > 0 || len(r.toolsCfg.Policy.Deny) > 0) {
		policy = &toolexec.ToolPolicy{Allow: r.toolsCfg.Policy.Allow, Deny: r.toolsCfg.Policy.Deny}
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(index int, call history.ToolCall) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, callSpan := tracing.StartSpan(ctx)
			r.hooks.OnToolCallStart(callSpan, call)

			result := r.executor.Execute(callCtx, call.Name, call.Parameters, &toolexec.ExecutionContext{
				SessionKey: sessionID,
				TurnID:     turnID,
				WorkingDir: params.WorkingDir,
				Timeout:    timeout,
				Policy:     policy,
			})

			r.hooks.OnToolCallEnd(callSpan, call, result)
			results[index] = result
		}(i, call)
	}
	wg.Wait()

	return results
}

// toolResultContent renders a tool result as the message content fed
// back to the model.
func toolResultContent(result toolexec.Result) string {
	if result.OK() {
		content := fmt.Sprintf("%v", result.Output)
		if content == "" {
			content = "(no output)"
		}
		return content
	}
	return fmt.Sprintf("tool error (%s): %s", result.Status, result.Error)
}

// fail marks the turn failed and notifies hooks with the structured
// error.
func (r *Runner) fail(turnSpan tracing.SpanContext, result *TurnResult, err error) (TurnResult, error) {
	result.State = StateFailed

	var agentErr *AgentError
	if !errors.As(err, &agentErr) {
		agentErr = NewAgentError(KindIO, turnSpan, "turn failed", err)
		err = agentErr
	}

	r.hooks.OnError(turnSpan, agentErr)
	r.hooks.OnTurnEnd(turnSpan, *result)
	return *result, err
}

// cancelled marks the turn cancelled.
func (r *Runner) cancelled(turnSpan tracing.SpanContext, result *TurnResult) (TurnResult, error) {
	result.State = StateCancelled
	r.hooks.OnTurnEnd(turnSpan, *result)
	return *result, nil
}

// sortProfilesByPriority sorts profiles by priority (lower = higher priority)
func sortProfilesByPriority(profiles []config.AIProfile) {
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})
}
