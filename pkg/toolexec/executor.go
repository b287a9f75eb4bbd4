package toolexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/veda/internal/observability"
)

// Status classifies the outcome of a tool execution.
type Status string

const (
	StatusOK              Status = "ok"
	StatusValidationError Status = "validation_error"
	StatusCancelled       Status = "cancelled"
	StatusFailed          Status = "failed"
	StatusTimeout         Status = "timeout"
	StatusNotFound        Status = "not_found"
	StatusDenied          Status = "denied"
)

// DefaultTimeout applies when the execution context carries no timeout.
const DefaultTimeout = 30 * time.Second

const maxOutputBytes = 10 * 1024

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ProgressUpdate is incremental metadata a tool emits before its final result.
type ProgressUpdate struct {
	Tool     string                 `json:"tool"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	SessionKey string
	TurnID     string
	WorkingDir string
	Timeout    time.Duration
	Progress   func(ProgressUpdate)
	Policy     *ToolPolicy
}

// Result represents the outcome of a tool execution
type Result struct {
	Status    Status                 `json:"status"`
	Title     string                 `json:"title,omitempty"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

// Executor manages and executes tools
type Executor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// New creates a new Executor
func New() *Executor {
	observability.EnsureRegistered()

	return &Executor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register registers a new tool
func (e *Executor) Register(def ToolDefinition) error {
	if err := validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := generateJSONSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	e.tools[def.Name] = &def
	e.schemas[def.Name] = schema

	log.Info().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// Unregister removes a tool
func (e *Executor) Unregister(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.tools, name)
	delete(e.schemas, name)
}

// Get returns a tool definition by name, or nil
func (e *Executor) Get(name string) *ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.tools[name]
}

// List returns all registered tool names
func (e *Executor) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}

	return names
}

// Count returns the number of registered tools
func (e *Executor) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.tools)
}

// Execute runs a tool with the given parameters. Parameters are validated
// against the tool's schema before the handler is invoked, so a
// validation_error result carries no side effects.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) Result {
	startTime := time.Now()

	if execCtx != nil && execCtx.Policy != nil {
		if !execCtx.Policy.IsToolAllowed(toolName) {
			log.Warn().
				Str("tool", toolName).
				Str("session_key", execCtx.SessionKey).
				Msg("Tool execution blocked by policy")
			return Result{
				Status: StatusDenied,
				Error:  fmt.Sprintf("tool '%s' is not allowed by policy", toolName),
			}
		}
	}

	e.mu.RLock()
	tool := e.tools[toolName]
	schema := e.schemas[toolName]
	e.mu.RUnlock()

	if tool == nil {
		log.Error().Str("tool", toolName).Msg("Tool not found")
		return Result{
			Status: StatusNotFound,
			Error:  fmt.Sprintf("tool not found: %s", toolName),
		}
	}

	if err := validateParameters(schema, params); err != nil {
		log.Error().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		return Result{
			Status: StatusValidationError,
			Error:  fmt.Sprintf("parameter validation failed: %v", err),
		}
	}

	log.Debug().Str("tool", toolName).Msg("Executing tool")

	timeout := DefaultTimeout
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handlerCtx := ContextWithExecContext(timeoutCtx, execCtx)

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := tool.Handler(handlerCtx, params)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		duration := time.Since(startTime)
		output, truncated := truncateOutput(result)

		log.Debug().
			Str("tool", toolName).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")
		observability.RecordToolExecution(toolName, duration, true)

		return Result{
			Status:    StatusOK,
			Title:     tool.Description,
			Output:    output,
			Truncated: truncated,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case err := <-errChan:
		duration := time.Since(startTime)

		// A handler that returns because its context fired still
		// counts as cancelled or timed out, not failed.
		if status, ok := interruptStatus(ctx, timeoutCtx); ok {
			observability.RecordToolExecution(toolName, duration, false)
			return interruptResult(status, toolName, timeout, duration)
		}

		log.Error().
			Str("tool", toolName).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")
		observability.RecordToolExecution(toolName, duration, false)

		return Result{
			Status: StatusFailed,
			Error:  err.Error(),
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case <-timeoutCtx.Done():
		duration := time.Since(startTime)
		status, _ := interruptStatus(ctx, timeoutCtx)
		observability.RecordToolExecution(toolName, duration, false)
		return interruptResult(status, toolName, timeout, duration)
	}
}

// interruptStatus distinguishes caller cancellation from the executor's
// own deadline.
func interruptStatus(parent, timeoutCtx context.Context) (Status, bool) {
	if parent.Err() != nil {
		return StatusCancelled, true
	}
	if timeoutCtx.Err() != nil {
		return StatusTimeout, true
	}
	return StatusFailed, false
}

func interruptResult(status Status, toolName string, timeout, duration time.Duration) Result {
	if status == StatusCancelled {
		log.Warn().Str("tool", toolName).Dur("duration", duration).Msg("Tool execution cancelled")
		return Result{
			Status: StatusCancelled,
			Error:  fmt.Sprintf("tool execution cancelled: %s", toolName),
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}
	}

	log.Error().Str("tool", toolName).Dur("duration", duration).Msg("Tool execution timeout")
	return Result{
		Status: StatusTimeout,
		Error:  fmt.Sprintf("tool execution timeout after %v", timeout),
		Metadata: map[string]interface{}{
			"duration": duration.Milliseconds(),
		},
	}
}

// validateToolDefinition validates a tool definition
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}

		validTypes := map[string]bool{
			"string": true, "number": true, "boolean": true,
			"object": true, "array": true, "integer": true,
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// generateJSONSchema generates a JSON Schema from tool parameters
func generateJSONSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := schemaMap["properties"].(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}

		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	if len(required) > 0 {
		schemaMap["required"] = required
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, err
	}

	return schema, nil
}

// validateParameters validates parameters against a JSON Schema
func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	paramsLoader := gojsonschema.NewGoLoader(params)
	result, err := schema.Validate(paramsLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}

// truncateOutput truncates output if it exceeds the size limit
func truncateOutput(output interface{}) (interface{}, bool) {
	str := fmt.Sprintf("%v", output)

	if len(str) <= maxOutputBytes {
		return output, false
	}

	truncated := str[:maxOutputBytes] + "\n... [output truncated]"
	log.Warn().
		Int("original", len(str)).
		Int("truncated", maxOutputBytes).
		Msg("Output truncated")

	return truncated, true
}
