package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aescanero/dago-turns/pkg/adapters/storage/codec"
	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
)

// entry is a serialized state with its expiry
type entry struct {
	data      []byte
	expiresAt time.Time
}

// ConversationStore implements ports.ConversationStore in memory.
// State is stored serialized so reads never alias a caller's value.
type ConversationStore struct {
	entries map[string]entry
	mu      sync.RWMutex

	// Now is the clock used for expiry
	Now func() time.Time
}

var _ ports.ConversationStore = (*ConversationStore)(nil)

// NewConversationStore creates a new in-memory conversation store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		entries: make(map[string]entry),
		Now:     time.Now,
	}
}

// Save stores state with an expiry of ttl from now
func (s *ConversationStore) Save(ctx context.Context, conversationID, tenantID string, state *domain.ConversationState, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = ports.DefaultStateTTL
	}

	data, err := codec.Encode(state)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[codec.StateKey(tenantID, conversationID)] = entry{
		data:      data,
		expiresAt: s.Now().Add(ttl),
	}
	return true
}

// Load returns the stored state or nil
func (s *ConversationStore) Load(ctx context.Context, conversationID, tenantID string) *domain.ConversationState {
	return s.Fetch(ctx, conversationID, tenantID).State
}

// Fetch returns the stored state, treating expired entries as missing
func (s *ConversationStore) Fetch(ctx context.Context, conversationID, tenantID string) ports.LoadResult {
	key := codec.StateKey(tenantID, conversationID)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return ports.LoadResult{Status: ports.LoadNotFound}
	}
	if !s.Now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && !s.Now().Before(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return ports.LoadResult{Status: ports.LoadNotFound}
	}

	state, err := codec.Decode(e.data)
	if err != nil {
		return ports.LoadResult{
			Status: ports.LoadBackendError,
			Err:    &domain.StateBackendError{Op: "decode", Err: err},
		}
	}
	return ports.LoadResult{Status: ports.LoadFound, State: state}
}

// Raw returns the serialized state stored under the conversation's key
func (s *ConversationStore) Raw(conversationID, tenantID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[codec.StateKey(tenantID, conversationID)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.data...), true
}
