package contextmgr

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/tokens"
)

// TruncationPolicy selects what happens to messages dropped from the window
type TruncationPolicy string

const (
	// PolicyDropOldest silently drops messages that no longer fit
	PolicyDropOldest TruncationPolicy = "drop-oldest"
	// PolicySummarize substitutes a synthetic summary pointer for the
	// dropped prefix
	PolicySummarize TruncationPolicy = "summarize"
)

// Pointer references a history message plus its estimated token cost.
// A pointer with a non-empty Summary is synthetic and has Index -1.
type Pointer struct {
	Index     int    `json:"index"`
	MessageID string `json:"message_id,omitempty"`
	Tokens    int    `json:"tokens"`
	Summary   string `json:"summary,omitempty"`
}

// IsSynthetic reports whether the pointer stands in for dropped messages
func (p Pointer) IsSynthetic() bool {
	return p.Summary != ""
}

// Window is the bounded view of history for one model call
type Window struct {
	SystemTokens int
	Pointers     []Pointer
	Truncated    bool
	DroppedCount int
}

// TotalTokens returns the window's estimated cost including the system prompt
func (w Window) TotalTokens() int {
	total := w.SystemTokens
	for _, p := range w.Pointers {
		total += p.Tokens
	}
	return total
}

// Config holds context manager configuration
type Config struct {
	// Budget is the token allowance for the window: model context size
	// minus the reserved completion margin.
	Budget int
	// Policy controls truncation behavior. Defaults to PolicyDropOldest.
	Policy TruncationPolicy
	Logger zerolog.Logger
}

// Manager builds context windows over a session's history
type Manager struct {
	history   *history.History
	estimator tokens.Estimator
	budget    int
	policy    TruncationPolicy
	logger    zerolog.Logger
}

// New creates a context manager for a session's history
func New(h *history.History, estimator tokens.Estimator, cfg Config) (*Manager, error) {
	if h == nil {
		return nil, fmt.Errorf("history is required")
	}
	if estimator == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	if cfg.Budget <= 0 {
		return nil, fmt.Errorf("budget must be positive")
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyDropOldest
	}
	if policy != PolicyDropOldest && policy != PolicySummarize {
		return nil, fmt.Errorf("unknown truncation policy: %s", policy)
	}

	return &Manager{
		history:   h,
		estimator: estimator,
		budget:    cfg.Budget,
		policy:    policy,
		logger:    cfg.Logger,
	}, nil
}

// Budget returns the configured token budget
func (m *Manager) Budget() int {
	return m.budget
}

// BuildWindow walks history from the most recent message backward,
// accumulating estimated token cost until the budget is reached. The system
// prompt is always charged. Returns pointers in chronological order.
func (m *Manager) BuildWindow(systemPrompt string) (Window, error) {
	systemTokens := m.estimator.EstimateText(systemPrompt)
	if systemTokens >= m.budget {
		return Window{}, fmt.Errorf("system prompt (%d tokens) exceeds budget (%d)", systemTokens, m.budget)
	}

	msgs := m.history.Snapshot()
	base := m.history.BaseIndex()
	remaining := m.budget - systemTokens

	groups := groupMessages(msgs)

	if len(groups) > 0 {
		if cost := m.groupCost(msgs, groups[len(groups)-1]); cost > remaining {
			return Window{}, fmt.Errorf("newest message group (%d tokens) exceeds budget (%d) after system prompt", cost, m.budget)
		}
	}

	// Walk groups newest-first until the next group no longer fits. The
	// newest group always fits after the check above, so a fresh user
	// message is never windowed away.
	included := len(groups)
	used := 0
	for i := len(groups) - 1; i >= 0; i-- {
		cost := m.groupCost(msgs, groups[i])
		if used+cost > remaining {
			break
		}
		used += cost
		included = i
	}

	truncated := included > 0
	dropped := 0
	for i := 0; i < included; i++ {
		dropped += groups[i].end - groups[i].start
	}

	var pointers []Pointer
	if truncated && m.policy == PolicySummarize {
		summary := fmt.Sprintf("[context truncated: %d earlier messages dropped]", dropped)
		summaryTokens := m.estimator.EstimateText(summary)

		// Make room for the summary itself, dropping further groups if
		// needed (never the newest).
		for used+summaryTokens > remaining && included < len(groups)-1 {
			cost := m.groupCost(msgs, groups[included])
			dropped += groups[included].end - groups[included].start
			used -= cost
			included++
			summary = fmt.Sprintf("[context truncated: %d earlier messages dropped]", dropped)
			summaryTokens = m.estimator.EstimateText(summary)
		}

		if used+summaryTokens <= remaining {
			pointers = append(pointers, Pointer{
				Index:   -1,
				Tokens:  summaryTokens,
				Summary: summary,
			})
		} else {
			// Only the newest group is left and the summary does not fit
			// beside it. The budget invariant wins over the policy: drop
			// the summary pointer.
			m.logger.Warn().
				Int("dropped", dropped).
				Int("budget", m.budget).
				Msg("Summary pointer does not fit in window, omitting")
		}
	}

	for gi := included; gi < len(groups); gi++ {
		for i := groups[gi].start; i < groups[gi].end; i++ {
			pointers = append(pointers, Pointer{
				Index:     base + i,
				MessageID: msgs[i].ID,
				Tokens:    m.estimator.EstimateMessage(msgs[i]),
			})
		}
	}

	if truncated {
		m.logger.Debug().
			Int("dropped", dropped).
			Int("budget", m.budget).
			Str("policy", string(m.policy)).
			Msg("Context window truncated")
	}

	return Window{
		SystemTokens: systemTokens,
		Pointers:     pointers,
		Truncated:    truncated,
		DroppedCount: dropped,
	}, nil
}

// Resolve materializes pointer bodies from history. Synthetic pointers
// become system messages carrying the summary text.
func (m *Manager) Resolve(pointers []Pointer) ([]history.Message, error) {
	out := make([]history.Message, 0, len(pointers))
	for _, p := range pointers {
		if p.IsSynthetic() {
			out = append(out, history.Message{
				Role:    history.RoleSystem,
				Content: p.Summary,
			})
			continue
		}
		msg, ok := m.history.Get(p.Index)
		if !ok {
			return nil, fmt.Errorf("pointer references evicted message at index %d", p.Index)
		}
		out = append(out, msg)
	}
	return out, nil
}

// messageGroup is a [start, end) slice of history that must stay together
type messageGroup struct {
	start, end int
}

// groupMessages partitions messages so an assistant tool-call message and
// its following tool results form one group.
func groupMessages(msgs []history.Message) []messageGroup {
	var groups []messageGroup
	i := 0
	for i < len(msgs) {
		end := i + 1
		if len(msgs[i].ToolCalls) > 0 {
			for end < len(msgs) && msgs[end].Role == history.RoleTool {
				end++
			}
		}
		groups = append(groups, messageGroup{start: i, end: end})
		i = end
	}
	return groups
}

func (m *Manager) groupCost(msgs []history.Message, g messageGroup) int {
	total := 0
	for i := g.start; i < g.end; i++ {
		total += m.estimator.EstimateMessage(msgs[i])
	}
	return total
}
