// Package session provides conversation state stores. Sessions are
// created lazily on first apply and updates to one session are
// serialized while distinct sessions proceed independently.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voyago-ai/voyago"
)

// DefaultMaxSessions bounds the in-memory store before the least
// recently used session is evicted.
const DefaultMaxSessions = 1024

// MemoryStore keeps session state in process memory. It implements
// voyago.SessionStore.
type MemoryStore struct {
	mutex       sync.Mutex
	slots       map[string]*sessionSlot
	maxSessions int
	logger      *zap.Logger
	now         func() time.Time
}

// sessionSlot owns one session. Its mutex serializes applies to that
// session without blocking the rest of the store.
type sessionSlot struct {
	mutex    sync.Mutex
	state    *voyago.SessionState
	lastUsed time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMaxSessions bounds the number of retained sessions.
func WithMaxSessions(n int) MemoryStoreOption {
	return func(s *MemoryStore) { s.maxSessions = n }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *zap.Logger) MemoryStoreOption {
	return func(s *MemoryStore) { s.logger = logger }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		slots:       make(map[string]*sessionSlot),
		maxSessions: DefaultMaxSessions,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Get implements voyago.SessionStore. A session that was never applied
// to yields (nil, nil).
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*voyago.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	slot, found := s.slots[sessionID]
	if found {
		slot.lastUsed = s.now()
	}
	s.mutex.Unlock()

	if !found {
		return nil, nil
	}

	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	return slot.state.Clone(), nil
}

// Apply implements voyago.SessionStore. The session is created on first
// use; concurrent applies to the same session run one at a time.
func (s *MemoryStore) Apply(ctx context.Context, sessionID string, update voyago.TurnUpdate) (*voyago.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()

	s.mutex.Lock()
	slot, found := s.slots[sessionID]
	if !found {
		slot = &sessionSlot{
			state: &voyago.SessionState{
				ID:        sessionID,
				CreatedAt: now,
			},
		}
		s.slots[sessionID] = slot
		s.evictLocked(sessionID)
	}
	slot.lastUsed = now
	s.mutex.Unlock()

	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	applyTurn(slot.state, update, now)
	return slot.state.Clone(), nil
}

// Len reports the number of retained sessions.
func (s *MemoryStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.slots)
}

// evictLocked drops the least recently used session once the store is
// over capacity. Caller holds s.mutex. The session named by keep is
// never evicted.
func (s *MemoryStore) evictLocked(keep string) {
	if s.maxSessions <= 0 || len(s.slots) <= s.maxSessions {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, slot := range s.slots {
		if id == keep {
			continue
		}
		if oldestID == "" || slot.lastUsed.Before(oldest) {
			oldestID = id
			oldest = slot.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.slots, oldestID)
		s.logger.Debug("evicted session", zap.String("session_id", oldestID))
	}
}

// applyTurn folds one committed turn into the session state.
func applyTurn(state *voyago.SessionState, update voyago.TurnUpdate, now time.Time) {
	state.Turns = append(state.Turns, update.Record)
	if update.CurrentDestination != "" {
		state.CurrentDestination = update.CurrentDestination
	}
	state.UpdatedAt = now
}
