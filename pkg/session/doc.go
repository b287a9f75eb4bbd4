// Package session persists conversation state as one JSON document per
// session.
//
// Invariants:
// - Session files are written temp-then-rename, so a concurrent reader
//   never observes a partial document.
// - Resume returns ErrNotFound for missing sessions and a wrapped error
//   for corrupt ones, never a partial session.
// - Saving beyond the retention limit deletes the oldest sessions by
//   last activity.
//
// Usage:
//
//	store, _ := session.NewStore(session.Config{Dir: dir, MaxSessions: 50})
//	id, _ := store.Save(ctx, &session.StoredSession{Messages: msgs})
//	restored, _ := store.Resume(ctx, id)
package session
