package history

import (
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a model-requested tool invocation
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Message represents a single conversation turn
type Message struct {
	ID         string                 `json:"id"`
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// CostFunc estimates the token cost of a message
type CostFunc func(Message) int

// History is the append-only conversation log for a single session.
// One writer per session; reads may run concurrently with each other.
type History struct {
	sessionKey string
	mu         sync.RWMutex
	base       int // absolute index of entries[0]; grows on eviction
	entries    []Message
}

// New creates an empty history for a session
func New(sessionKey string) *History {
	return &History{
		sessionKey: sessionKey,
		entries:    make([]Message, 0),
	}
}

// SessionKey returns the owning session key
func (h *History) SessionKey() string {
	return h.sessionKey
}

// Append validates and appends a message, assigning an ID and timestamp if
// unset. It returns the message's absolute index.
func (h *History) Append(msg Message) (int, error) {
	if msg.Role == "" {
		return 0, fmt.Errorf("message role cannot be empty")
	}
	if msg.Content == "" && len(msg.ToolCalls) == 0 {
		return 0, fmt.Errorf("message must have content or tool calls")
	}
	if msg.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return 0, fmt.Errorf("failed to generate message id: %w", err)
		}
		msg.ID = id
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, msg)
	return h.base + len(h.entries) - 1, nil
}

// Len returns the total number of messages ever appended, including evicted
// ones. The next append receives this index.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.base + len(h.entries)
}

// BaseIndex returns the absolute index of the oldest retained message
func (h *History) BaseIndex() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.base
}

// Get returns the message at an absolute index. The second return is false
// when the index is out of range or the message has been evicted.
func (h *History) Get(index int) (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if index < h.base || index >= h.base+len(h.entries) {
		return Message{}, false
	}
	return h.entries[index-h.base], true
}

// Range returns a copy of messages in [from, to) by absolute index, clamped
// to the retained window.
func (h *History) Range(from, to int) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if from < h.base {
		from = h.base
	}
	if to > h.base+len(h.entries) {
		to = h.base + len(h.entries)
	}
	if from >= to {
		return []Message{}
	}

	out := make([]Message, to-from)
	copy(out, h.entries[from-h.base:to-h.base])
	return out
}

// Snapshot returns a copy of all retained messages
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, len(h.entries))
	copy(out, h.entries)
	return out
}

// Restore replaces the retained messages, used when resuming a persisted
// session. The base index resets to zero.
func (h *History) Restore(msgs []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.base = 0
	h.entries = make([]Message, len(msgs))
	copy(h.entries, msgs)
}

// EvictToBudget drops the oldest messages until the estimated token total is
// within the ceiling. An assistant message with tool calls and its
// tool-result messages form one eviction group. Returns the number of
// messages evicted.
func (h *History) EvictToBudget(cost CostFunc, ceiling int) int {
	if ceiling <= 0 {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, msg := range h.entries {
		total += cost(msg)
	}

	evicted := 0
	for total > ceiling && len(h.entries) > 1 {
		groupEnd := groupEndLocked(h.entries, 0)
		if groupEnd >= len(h.entries) {
			// The remaining messages are a single group; keep them.
			break
		}
		for i := 0; i < groupEnd; i++ {
			total -= cost(h.entries[i])
		}
		h.entries = h.entries[groupEnd:]
		h.base += groupEnd
		evicted += groupEnd
	}

	return evicted
}

// groupEndLocked returns the exclusive end of the eviction group starting at
// start. Tool results following an assistant tool-call message belong to its
// group.
func groupEndLocked(entries []Message, start int) int {
	end := start + 1
	if len(entries[start].ToolCalls) > 0 {
		for end < len(entries) && entries[end].Role == RoleTool {
			end++
		}
	}
	return end
}
