// Package commandqueue provides lane-based task serialization.
//
// Each lane runs its tasks with a fixed concurrency limit; the default
// limit of one makes a lane a serial executor. The agent runner gives
// every session its own lane, so turns within a session never overlap
// while separate sessions run concurrently.
//
// Invariants:
// - Tasks in a lane start in enqueue order.
// - A lane never runs more tasks than its concurrency limit.
// - EnqueueWithContext returns only after the task has run (or the lane
//   was cleared or reset).
package commandqueue
