package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harun/veda/internal/observability"
	"github.com/harun/veda/internal/tracing"
	"github.com/harun/veda/pkg/contextmgr"
	"github.com/harun/veda/pkg/history"
)

// ErrNotFound is returned when a session id has no stored record.
var ErrNotFound = errors.New("session not found")

const previewLength = 80

// Metadata summarizes a stored session without its message bodies.
type Metadata struct {
	MessageCount int    `json:"message_count"`
	FirstMessage string `json:"first_message,omitempty"`
}

// StoredSession is the durable record for one conversation.
type StoredSession struct {
	ID              string              `json:"id"`
	CreatedAt       time.Time           `json:"created_at"`
	LastActivityAt  time.Time           `json:"last_activity_at"`
	Messages        []history.Message   `json:"messages"`
	ContextPointers []contextmgr.Pointer `json:"context_pointers,omitempty"`
	Metadata        Metadata            `json:"metadata"`
}

// ListEntry is the lightweight index record returned by List.
type ListEntry struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Metadata       Metadata  `json:"metadata"`
}

// Config configures a Store.
type Config struct {
	Dir         string
	MaxSessions int // 0 disables retention
}

// Store persists sessions as single JSON documents under a directory.
type Store struct {
	dir         string
	maxSessions int
	writeLocks  map[string]*sync.Mutex
	locksMu     sync.Mutex
}

// NewStore creates a Store rooted at cfg.Dir, creating the directory if
// needed.
func NewStore(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	dir := cfg.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".veda", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	s := &Store{
		dir:         dir,
		maxSessions: cfg.MaxSessions,
		writeLocks:  make(map[string]*sync.Mutex),
	}

	log.Info().Str("dir", dir).Msg("Session store initialized")
	s.updateActiveSessionsMetric()

	return s, nil
}

// validateID validates a session id for path safety
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("session id cannot contain '..'")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("session id cannot contain path separators")
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("session id cannot contain null bytes")
	}
	return nil
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) updateActiveSessionsMetric() {
	entries, err := s.List(context.Background())
	if err != nil {
		return
	}
	observability.SetActiveSessions(len(entries))
}

// writeLock returns the mutex guarding writes for one session id.
// Entries live for the store's lifetime: removing one while a waiter
// holds the mutex would let a concurrent writer mint a second lock for
// the same id.
func (s *Store) writeLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, exists := s.writeLocks[id]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	s.writeLocks[id] = lock
	return lock
}


// Save persists a session, assigning an id when blank, and returns the
// id. Summary metadata and the last-activity timestamp are refreshed
// from the message list. Beyond MaxSessions the oldest sessions by last
// activity are deleted.
func (s *Store) Save(ctx context.Context, sess *StoredSession) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if sess == nil {
		return "", fmt.Errorf("session cannot be nil")
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if err := validateID(sess.ID); err != nil {
		return "", err
	}

	ctx = tracing.WithSessionKey(ctx, sess.ID)
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.LastActivityAt = now
	sess.Metadata = buildMetadata(sess.Messages)

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	lock := s.writeLock(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.writeAtomic(s.sessionPath(sess.ID), data); err != nil {
		return "", err
	}

	logger.Debug().
		Str("session_id", sess.ID).
		Int("messages", len(sess.Messages)).
		Msg("Session saved")

	if err := s.enforceRetention(ctx, sess.ID); err != nil {
		logger.Warn().Err(err).Msg("Session retention enforcement failed")
	}
	s.updateActiveSessionsMetric()

	return sess.ID, nil
}

// writeAtomic writes data to path via a temp file and rename.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod session file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func buildMetadata(messages []history.Message) Metadata {
	md := Metadata{MessageCount: len(messages)}
	for _, msg := range messages {
		if msg.Role == history.RoleUser && msg.Content != "" {
			md.FirstMessage = preview(msg.Content)
			break
		}
	}
	return md
}

func preview(content string) string {
	if len(content) <= previewLength {
		return content
	}
	// Cut on a rune boundary so multi-byte characters are never split.
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

// enforceRetention deletes the oldest sessions beyond the retention
// limit. The session just saved is never deleted.
func (s *Store) enforceRetention(ctx context.Context, keepID string) error {
	if s.maxSessions <= 0 {
		return nil
	}

	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) <= s.maxSessions {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastActivityAt.Before(entries[j].LastActivityAt)
	})

	excess := len(entries) - s.maxSessions
	for _, entry := range entries {
		if excess == 0 {
			break
		}
		if entry.ID == keepID {
			continue
		}
		if err := s.Delete(ctx, entry.ID); err != nil {
			return err
		}
		log.Info().Str("session_id", entry.ID).Msg("Old session purged by retention")
		excess--
	}

	return nil
}

// Resume loads a stored session by id. Missing sessions yield
// ErrNotFound; unreadable or corrupt records yield a wrapped error,
// never a partial session.
func (s *Store) Resume(ctx context.Context, id string) (*StoredSession, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	ctx = tracing.WithSessionKey(ctx, id)
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var sess StoredSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	if sess.ID != id {
		return nil, fmt.Errorf("corrupt session %s: id mismatch %q", id, sess.ID)
	}

	logger.Debug().
		Str("session_id", id).
		Int("messages", len(sess.Messages)).
		Msg("Session resumed")

	return &sess, nil
}

// List scans the store directory and returns metadata for every stored
// session without loading message bodies. Unreadable files are skipped.
func (s *Store) List(ctx context.Context) ([]ListEntry, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ListEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	entries := make([]ListEntry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, dirEntry.Name()))
		if err != nil {
			log.Warn().Str("file", dirEntry.Name()).Err(err).Msg("Failed to read session file, skipping")
			continue
		}

		var entry ListEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			log.Warn().Str("file", dirEntry.Name()).Err(err).Msg("Failed to parse session file, skipping")
			continue
		}
		if entry.ID == "" {
			continue
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastActivityAt.After(entries[j].LastActivityAt)
	})

	return entries, nil
}

// Delete removes a stored session. Deleting a missing session is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateID(id); err != nil {
		return err
	}

	lock := s.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.sessionPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}

	s.updateActiveSessionsMetric()

	log.Info().Str("session_id", id).Msg("Session deleted")

	return nil
}

// Purge deletes every stored session and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, entry := range entries {
		if err := s.Delete(ctx, entry.ID); err != nil {
			return deleted, err
		}
		deleted++
	}

	log.Info().Int("deleted", deleted).Msg("Session store purged")

	return deleted, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}
