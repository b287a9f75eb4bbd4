package tokens

import (
	"sync"

	"github.com/harun/veda/internal/observability"
)

// Usage holds exact token counts reported by the model for one call
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the element-wise sum of two usage figures
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Total returns input plus output tokens
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Tracker accumulates exact usage per session. Recording is append-only;
// reads return snapshots.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*sessionUsage
}

type sessionUsage struct {
	total Usage
	calls int
}

// NewTracker creates an empty usage tracker
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*sessionUsage),
	}
}

// Record accumulates one model call's usage into the session's running total
func (t *Tracker) Record(sessionKey string, usage Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	su, ok := t.sessions[sessionKey]
	if !ok {
		su = &sessionUsage{}
		t.sessions[sessionKey] = su
	}
	su.total = su.total.Add(usage)
	su.calls++

	observability.RecordTokenUsage(usage.InputTokens, usage.OutputTokens)
}

// Totals returns the accumulated usage for a session
func (t *Tracker) Totals(sessionKey string) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if su, ok := t.sessions[sessionKey]; ok {
		return su.total
	}
	return Usage{}
}

// CallCount returns how many model calls the session has recorded
func (t *Tracker) CallCount(sessionKey string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if su, ok := t.sessions[sessionKey]; ok {
		return su.calls
	}
	return 0
}

// Reset removes the accumulated usage for a session
func (t *Tracker) Reset(sessionKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionKey)
}
