package contextmgr

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/tokens"
)

func newTestHistory(t *testing.T, msgs ...history.Message) *history.History {
	t.Helper()
	h := history.New("test-session")
	for _, msg := range msgs {
		_, err := h.Append(msg)
		require.NoError(t, err)
	}
	return h
}

func userMsg(content string) history.Message {
	return history.Message{Role: history.RoleUser, Content: content}
}

func assistantMsg(content string) history.Message {
	return history.Message{Role: history.RoleAssistant, Content: content}
}

func TestNew_Validation(t *testing.T) {
	h := history.New("s")
	est := tokens.NewHeuristicEstimator()

	_, err := New(nil, est, Config{Budget: 100})
	assert.Error(t, err)
	_, err = New(h, nil, Config{Budget: 100})
	assert.Error(t, err)
	_, err = New(h, est, Config{Budget: 0})
	assert.Error(t, err)
	_, err = New(h, est, Config{Budget: 100, Policy: "middle-out"})
	assert.Error(t, err)

	m, err := New(h, est, Config{Budget: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, m.Budget())
}

func TestBuildWindow_AllMessagesFit(t *testing.T) {
	h := newTestHistory(t, userMsg("hello"), assistantMsg("hi there"))
	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 1000})
	require.NoError(t, err)

	win, err := m.BuildWindow("system prompt")
	require.NoError(t, err)

	assert.False(t, win.Truncated)
	assert.Zero(t, win.DroppedCount)
	require.Len(t, win.Pointers, 2)
	assert.Equal(t, 0, win.Pointers[0].Index)
	assert.Equal(t, 1, win.Pointers[1].Index)
	assert.LessOrEqual(t, win.TotalTokens(), 1000)
}

func TestBuildWindow_TruncatesToBudget(t *testing.T) {
	var msgs []history.Message
	for i := 0; i < 20; i++ {
		// ~25 tokens each.
		msgs = append(msgs, userMsg(fmt.Sprintf("%02d %s", i, strings.Repeat("x", 97))))
	}
	h := newTestHistory(t, msgs...)

	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 150})
	require.NoError(t, err)

	win, err := m.BuildWindow("sys")
	require.NoError(t, err)

	assert.True(t, win.Truncated)
	assert.Greater(t, win.DroppedCount, 0)
	assert.LessOrEqual(t, win.TotalTokens(), 150)

	// The newest messages are the ones retained, in order.
	resolved, err := m.Resolve(win.Pointers)
	require.NoError(t, err)
	require.NotEmpty(t, resolved)
	assert.Equal(t, "19", resolved[len(resolved)-1].Content[:2])
}

func TestBuildWindow_NeverSplitsToolGroups(t *testing.T) {
	filler := strings.Repeat("y", 200)
	h := newTestHistory(t,
		userMsg(filler),
		history.Message{
			Role:      history.RoleAssistant,
			Content:   "calling tools",
			ToolCalls: []history.ToolCall{{ID: "tc-1", Name: "glob"}, {ID: "tc-2", Name: "read"}},
		},
		history.Message{Role: history.RoleTool, Content: filler, ToolCallID: "tc-1"},
		history.Message{Role: history.RoleTool, Content: filler, ToolCallID: "tc-2"},
		assistantMsg("done"),
		userMsg("next question"),
	)

	est := tokens.NewHeuristicEstimator()

	// Walk a range of budgets: whatever fits, a tool result must never
	// appear without its assistant tool-call message.
	for budget := 20; budget <= 400; budget += 10 {
		m, err := New(h, est, Config{Budget: budget})
		require.NoError(t, err)

		win, err := m.BuildWindow("s")
		require.NoError(t, err)

		resolved, err := m.Resolve(win.Pointers)
		require.NoError(t, err)

		hasToolCallMsg := false
		for _, msg := range resolved {
			if len(msg.ToolCalls) > 0 {
				hasToolCallMsg = true
			}
			if msg.Role == history.RoleTool {
				assert.True(t, hasToolCallMsg,
					"budget %d: tool result windowed without its tool-call message", budget)
			}
		}
	}
}

func TestBuildWindow_SummarizePolicy(t *testing.T) {
	var msgs []history.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, userMsg(strings.Repeat("z", 100)))
	}
	h := newTestHistory(t, msgs...)

	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 100, Policy: PolicySummarize})
	require.NoError(t, err)

	win, err := m.BuildWindow("s")
	require.NoError(t, err)

	assert.True(t, win.Truncated)
	assert.LessOrEqual(t, win.TotalTokens(), 100)
	require.NotEmpty(t, win.Pointers)

	first := win.Pointers[0]
	assert.True(t, first.IsSynthetic())
	assert.Equal(t, -1, first.Index)
	assert.Contains(t, first.Summary, "context truncated")

	resolved, err := m.Resolve(win.Pointers)
	require.NoError(t, err)
	assert.Equal(t, history.RoleSystem, resolved[0].Role)
	assert.Contains(t, resolved[0].Content, fmt.Sprintf("%d earlier messages dropped", win.DroppedCount))
}

func TestBuildWindow_SystemPromptTooLarge(t *testing.T) {
	h := newTestHistory(t, userMsg("hi"))
	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 10})
	require.NoError(t, err)

	_, err = m.BuildWindow(strings.Repeat("s", 100))
	assert.Error(t, err)
}

func TestBuildWindow_NewestMessageTooLarge(t *testing.T) {
	h := newTestHistory(t, userMsg(strings.Repeat("z", 4000)))
	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 100})
	require.NoError(t, err)

	_, err = m.BuildWindow("s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds budget")
}

func TestBuildWindow_NewestGroupTooLarge(t *testing.T) {
	// Older messages fit; the newest tool group alone does not. The
	// window must error rather than exceed the budget.
	h := newTestHistory(t,
		userMsg("small question"),
		assistantMsg("small answer"),
		history.Message{
			Role:      history.RoleAssistant,
			Content:   "calling tools",
			ToolCalls: []history.ToolCall{{ID: "tc-1", Name: "read"}},
		},
		history.Message{Role: history.RoleTool, Content: strings.Repeat("z", 4000), ToolCallID: "tc-1"},
	)

	for _, policy := range []TruncationPolicy{PolicyDropOldest, PolicySummarize} {
		m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 100, Policy: policy})
		require.NoError(t, err)

		_, err = m.BuildWindow("s")
		require.Error(t, err, "policy %s", policy)
		assert.Contains(t, err.Error(), "exceeds budget")
	}
}

func TestBuildWindow_SummarizeOmitsSummaryWhenTight(t *testing.T) {
	// The newest message fits, but not with the summary pointer beside
	// it. The summary is dropped and the budget holds.
	h := newTestHistory(t,
		userMsg(strings.Repeat("y", 100)),
		userMsg(strings.Repeat("z", 368)),
	)
	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 100, Policy: PolicySummarize})
	require.NoError(t, err)

	win, err := m.BuildWindow("s")
	require.NoError(t, err)

	assert.True(t, win.Truncated)
	assert.LessOrEqual(t, win.TotalTokens(), 100)
	require.Len(t, win.Pointers, 1)
	assert.False(t, win.Pointers[0].IsSynthetic())
}

func TestBuildWindow_EmptyHistory(t *testing.T) {
	h := history.New("s")
	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 100})
	require.NoError(t, err)

	win, err := m.BuildWindow("sys")
	require.NoError(t, err)
	assert.Empty(t, win.Pointers)
	assert.False(t, win.Truncated)
}

func TestResolve_StalePointer(t *testing.T) {
	h := newTestHistory(t, userMsg("a"), userMsg("b"), userMsg("c"))
	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 1000})
	require.NoError(t, err)

	win, err := m.BuildWindow("s")
	require.NoError(t, err)

	// Evict the oldest message after the window was built.
	h.EvictToBudget(func(history.Message) int { return 1 }, 2)

	_, err = m.Resolve(win.Pointers)
	assert.Error(t, err)
}

func TestPointer_MonotonicIndices(t *testing.T) {
	var msgs []history.Message
	for i := 0; i < 6; i++ {
		msgs = append(msgs, userMsg(fmt.Sprintf("message %d", i)))
	}
	h := newTestHistory(t, msgs...)
	m, err := New(h, tokens.NewHeuristicEstimator(), Config{Budget: 1000})
	require.NoError(t, err)

	win, err := m.BuildWindow("s")
	require.NoError(t, err)

	for i := 1; i < len(win.Pointers); i++ {
		assert.Greater(t, win.Pointers[i].Index, win.Pointers[i-1].Index)
	}
}
