package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/infrastructure/monitoring"
	"github.com/iconicplus/shell/internal/shared/id"
	"github.com/iconicplus/shell/internal/shared/types"
)

// StorageKey is the single durable key holding the serialized collection.
const StorageKey = "iconic_sessions"

// KV interface for durable storage, for dependency injection
type KV interface {
	Read(key string) ([]byte, bool, error)
	Write(key string, data []byte) error
}

// ModeSwitcher interface for navigation side effects of store operations
type ModeSwitcher interface {
	SwitchTo(mode types.Mode)
}

// Store owns the ordered conversation collection and the active id.
type Store struct {
	mu       sync.RWMutex
	sessions []*types.ChatSession // newest first; protected by mu
	activeID string               // empty when unset; protected by mu
	kv       KV
	nav      ModeSwitcher
	gen      *id.Generator
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	subMu       sync.Mutex
	subNextID   int
	subscribers map[int]func()
}

// NewStore creates a store backed by kv. The nav switcher may be nil in
// tests that do not care about mode side effects.
func NewStore(kv KV, nav ModeSwitcher, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		kv:          kv,
		nav:         nav,
		gen:         id.NewGenerator(),
		logger:      logger,
		subscribers: make(map[int]func()),
	}
}

// WithMetrics adds metrics tracking to the store.
func (s *Store) WithMetrics(metrics *monitoring.Metrics) *Store {
	s.metrics = metrics
	return s
}

// Subscribe registers a callback invoked after every collection or active-id
// change. Callbacks run outside the store lock, so they may call back into
// the store. The returned disposer is idempotent.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	subID := s.subNextID
	s.subNextID++
	s.subscribers[subID] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, subID)
			s.subMu.Unlock()
		})
	}
}

// Restore loads the persisted collection. A missing, empty, or corrupt blob
// is treated as "no prior sessions"; startup never fails on bad state.
func (s *Store) Restore() {
	data, ok, err := s.kv.Read(StorageKey)
	if err != nil {
		s.logger.Warn("Failed to read persisted sessions", zap.Error(err))
		return
	}
	if !ok || len(data) == 0 {
		return
	}

	var restored []*types.ChatSession
	if err := sonic.Unmarshal(data, &restored); err != nil {
		s.logger.Warn("Persisted sessions corrupt, starting empty", zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncRestoreCorrupted()
		}
		return
	}

	// Default fields the persisted layout may omit; drop entries without
	// an id since identity is the id
	sessions := make([]*types.ChatSession, 0, len(restored))
	for _, sess := range restored {
		if sess == nil || sess.ID == "" {
			continue
		}
		if sess.Messages == nil {
			sess.Messages = []types.ChatMessage{}
		}
		if sess.Title == "" {
			sess.Title = types.DefaultSessionTitle
		}
		sessions = append(sessions, sess)
	}

	s.mu.Lock()
	s.sessions = sessions
	if len(sessions) > 0 {
		s.activeID = sessions[0].ID
	}
	total := len(sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetSessionsActive(total)
	}
	s.logger.Info("Restored conversation sessions", zap.Int("count", total))
	s.notify()
}

// Create synthesizes a new conversation, prepends it, makes it active, and
// switches the shell to chat mode.
func (s *Store) Create() *types.ChatSession {
	sess := &types.ChatSession{
		ID:           s.gen.GenerateString(),
		Title:        types.DefaultSessionTitle,
		Messages:     []types.ChatMessage{},
		LastModified: time.Now().UnixMilli(),
	}

	s.mu.Lock()
	s.sessions = append([]*types.ChatSession{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persistLocked()
	total := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncSessionsCreated()
		s.metrics.SetSessionsActive(total)
	}
	if s.nav != nil {
		s.nav.SwitchTo(types.ModeChat)
	}
	s.notify()

	cp := *sess
	return &cp
}

// Delete removes the session with the given id. Deleting the active session
// reassigns the active id to the new first element, or clears it when the
// collection empties. An unknown id is a no-op.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.activeID == sessionID {
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		} else {
			s.activeID = ""
		}
	}
	s.persistLocked()
	total := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncSessionsDeleted()
		s.metrics.SetSessionsActive(total)
	}
	s.notify()
	return true
}

// Select makes the session with the given id active and switches to chat
// mode. An unknown id is a no-op.
func (s *Store) Select(sessionID string) bool {
	s.mu.Lock()
	if s.indexLocked(sessionID) < 0 {
		s.mu.Unlock()
		return false
	}
	s.activeID = sessionID
	s.mu.Unlock()

	if s.nav != nil {
		s.nav.SwitchTo(types.ModeChat)
	}
	s.notify()
	return true
}

// AppendMessage appends a message to a session, bumping its last-modified
// timestamp. A missing message id is filled in. An unknown session id is a
// no-op.
func (s *Store) AppendMessage(sessionID string, msg types.ChatMessage) bool {
	if msg.ID == "" {
		msg.ID = id.NewMessageID().String()
	}

	s.mu.Lock()
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	sess := s.sessions[idx]
	sess.Messages = append(sess.Messages, msg)
	sess.LastModified = time.Now().UnixMilli()
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// Rename retitles a session. An unknown id is a no-op.
func (s *Store) Rename(sessionID, title string) bool {
	s.mu.Lock()
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.sessions[idx].Title = title
	s.sessions[idx].LastModified = time.Now().UnixMilli()
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// SetGroupMode flips the group-conversation flag on a session.
func (s *Store) SetGroupMode(sessionID string, on bool) bool {
	s.mu.Lock()
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.sessions[idx].IsGroupMode = on
	s.sessions[idx].LastModified = time.Now().UnixMilli()
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// Sessions returns a copy of the collection, newest first.
func (s *Store) Sessions() []types.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = *sess
		out[i].Messages = append([]types.ChatMessage(nil), sess.Messages...)
	}
	return out
}

// Get retrieves a copy of one session by id.
func (s *Store) Get(sessionID string) (*types.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return nil, false
	}
	cp := *s.sessions[idx]
	cp.Messages = append([]types.ChatMessage(nil), s.sessions[idx].Messages...)
	return &cp, true
}

// ActiveID returns the active session id, or empty when unset.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Len returns the number of sessions in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats returns store statistics.
func (s *Store) Stats() types.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := 0
	for _, sess := range s.sessions {
		messages += len(sess.Messages)
	}

	stats := types.SessionStats{
		TotalSessions: len(s.sessions),
		TotalMessages: messages,
	}
	if s.activeID != "" {
		active := s.activeID
		stats.ActiveSessionID = &active
	}
	return stats
}

// indexLocked finds a session by id; must hold mu.
func (s *Store) indexLocked(sessionID string) int {
	for i, sess := range s.sessions {
		if sess.ID == sessionID {
			return i
		}
	}
	return -1
}

// persistLocked serializes the collection and writes it to storage; must
// hold mu so a slower write can never overwrite a newer one.
func (s *Store) persistLocked() {
	data, err := sonic.Marshal(s.sessions)
	if err != nil {
		s.logger.Error("Failed to serialize sessions", zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncPersistFailures()
		}
		return
	}

	if err := s.kv.Write(StorageKey, data); err != nil {
		s.logger.Error("Failed to persist sessions", zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncPersistFailures()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.IncPersistWrites()
	}
}

// notify invokes subscribers outside the store lock, in registration order.
func (s *Store) notify() {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subscribers))
	for subID := range s.subscribers {
		ids = append(ids, subID)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, subID := range ids {
		fns = append(fns, s.subscribers[subID])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Validate reports a broken active-id reference. Used by health checks.
func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.sessions) == 0 || s.activeID == "" {
		return nil
	}
	if s.indexLocked(s.activeID) < 0 {
		return fmt.Errorf("active session %s not in collection", s.activeID)
	}
	return nil
}
