package agent

import (
	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/tokens"
	"github.com/harun/veda/pkg/toolexec"
)

// State is the agent loop's position in its state machine.
type State string

const (
	StateIdle             State = "idle"
	StateDispatchingLLM   State = "dispatching_llm"
	StateDispatchingTools State = "dispatching_tools"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether the state ends a turn.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// RunParams are the inputs for one turn.
type RunParams struct {
	SessionID  string               `json:"session_id,omitempty"` // blank starts a new session
	Prompt     string               `json:"prompt"`
	WorkingDir string               `json:"working_dir,omitempty"`
	Tools      []string             `json:"tools,omitempty"` // nil exposes every registered tool
	Policy     *toolexec.ToolPolicy `json:"policy,omitempty"`
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	State      State              `json:"state"`
	Response   string             `json:"response,omitempty"`
	ToolCalls  []history.ToolCall `json:"tool_calls,omitempty"`
	Usage      tokens.Usage       `json:"usage"`
	SessionKey string             `json:"session_key"`
	TurnID     string             `json:"turn_id"`
}
