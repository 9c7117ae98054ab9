package session

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"audiotube/internal/logging"
)

// Store holds one Session per chat together with any audio file the session
// owns. All access goes through a single mutex; the Machine performs each
// transition while holding it.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	timeout  time.Duration
	now      func() time.Time
	remove   func(string) error
	logger   *slog.Logger
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for activity stamps and expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRemover overrides how owned audio files are deleted.
func WithRemover(remove func(string) error) StoreOption {
	return func(s *Store) {
		if remove != nil {
			s.remove = remove
		}
	}
}

// WithLogger attaches a logger for eviction and cleanup events.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store whose waiting sessions expire after timeout
// of inactivity.
func NewStore(timeout time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
		now:      time.Now,
		remove:   os.Remove,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "session_store")
	return s
}

// Get returns a copy of the chat's session.
func (s *Store) Get(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Upsert stores sess as the chat's session, replacing any existing record. A
// replaced record's audio file is deleted unless the new record keeps it.
func (s *Store) Upsert(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.LastActivity.IsZero() {
		sess.LastActivity = s.now()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.LastActivity
	}
	if prev, ok := s.sessions[sess.ChatID]; ok && prev.AudioPath != "" && prev.AudioPath != sess.AudioPath {
		s.discardLocked(prev.ChatID, prev.AudioPath)
	}
	s.sessions[sess.ChatID] = &sess
}

// Delete removes the chat's session and deletes the audio file it owns.
func (s *Store) Delete(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(chatID)
}

// Remove tears down a processing session once its run has reported back. The
// run owns its files, so nothing is deleted from disk. Returns false when the
// chat has no processing session for runID.
func (s *Store) Remove(chatID int64, runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok || sess.State != StateProcessing || sess.RunID != runID {
		return false
	}
	delete(s.sessions, chatID)
	return true
}

// SweepExpired evicts every waiting session idle for longer than the timeout,
// deleting owned audio files. Processing sessions are never expired. Returns
// the evicted chat IDs in ascending order.
func (s *Store) SweepExpired(now time.Time) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeout <= 0 {
		return nil
	}
	var evicted []int64
	for chatID, sess := range s.sessions {
		if sess.State == StateProcessing {
			continue
		}
		if now.Sub(sess.LastActivity) <= s.timeout {
			continue
		}
		idle := now.Sub(sess.LastActivity)
		s.deleteLocked(chatID)
		evicted = append(evicted, chatID)
		s.logger.Info("session expired",
			logging.ChatID(chatID),
			logging.String("state", string(sess.State)),
			logging.Duration("idle", idle),
			logging.String(logging.FieldEventType, "session_expired"),
		)
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i] < evicted[j] })
	return evicted
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot returns copies of all sessions ordered by chat ID.
func (s *Store) Snapshot() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// CountByState returns the number of sessions in each state.
func (s *Store) CountByState() map[State]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[State]int, len(States))
	for _, state := range States {
		counts[state] = 0
	}
	for _, sess := range s.sessions {
		counts[sess.State]++
	}
	return counts
}

// Close deletes every waiting session and its audio. Processing sessions are
// left for their runs to finish.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for chatID, sess := range s.sessions {
		if sess.State != StateProcessing {
			s.deleteLocked(chatID)
		}
	}
}

func (s *Store) deleteLocked(chatID int64) bool {
	sess, ok := s.sessions[chatID]
	if !ok {
		return false
	}
	delete(s.sessions, chatID)
	if sess.AudioPath != "" {
		s.discardLocked(chatID, sess.AudioPath)
	}
	return true
}

// discardLocked deletes an owned audio file. Failures are logged only.
func (s *Store) discardLocked(chatID int64, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := s.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(s.logger, "audio cleanup failed; file remains", "session_cleanup_failed",
			logging.ChatID(chatID),
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.temp_dir"),
			logging.String(logging.FieldImpact, "orphaned audio file uses disk space"),
		)
	}
}
