// Package contextmgr derives the bounded message window sent to the model
// from the full conversation history.
//
// Invariants:
// - The window's estimated token sum stays within the configured budget.
// - The system prompt is always charged against the budget first.
// - Assistant tool-call messages and their tool results are windowed as one
//   group, never split.
// - Pointers reference history by absolute index; bodies are materialized
//   only at serialization time.
//
// Usage:
//
//	mgr, _ := contextmgr.New(h, est, contextmgr.Config{Budget: 8000})
//	win, _ := mgr.BuildWindow("You are a helpful assistant.")
//	msgs := mgr.Resolve(win.Pointers)
//	_ = msgs
package contextmgr
