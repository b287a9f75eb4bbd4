// Package history holds the append-only conversation log for a session.
//
// Invariants:
// - Messages are never mutated after append.
// - Indices are absolute and stay stable across evictions.
// - An assistant message carrying tool calls and its tool-result messages
//   are evicted together or retained together.
//
// Usage:
//
//	h := history.New("session:1")
//	idx, _ := h.Append(history.Message{Role: history.RoleUser, Content: "hello"})
//	msg, _ := h.Get(idx)
//	_ = msg
package history
