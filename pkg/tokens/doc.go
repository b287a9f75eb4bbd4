// Package tokens estimates token costs before model calls and accumulates
// exact usage figures afterwards.
//
// Invariants:
// - Estimation is deterministic and side-effect free.
// - Accounting is append-only per session and exposed read-only.
//
// Usage:
//
//	est := tokens.NewHeuristicEstimator()
//	n := est.EstimateText("hello world")
//	_ = n
package tokens
