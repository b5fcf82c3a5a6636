package redis

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/dago-turns/pkg/adapters/storage/codec"
	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConversationStore implements ports.ConversationStore using Redis
type ConversationStore struct {
	client redis.Cmdable
	logger *zap.Logger
}

var _ ports.ConversationStore = (*ConversationStore)(nil)

// NewConversationStore creates a new Redis conversation store. The client is
// shared by all concurrent turns and is owned by the caller.
func NewConversationStore(client redis.Cmdable, logger *zap.Logger) *ConversationStore {
	return &ConversationStore{
		client: client,
		logger: logger,
	}
}

// Save serializes state and writes it with an expiry of ttl. Every save
// restarts the expiry window. Failures are logged and reported as false.
func (s *ConversationStore) Save(ctx context.Context, conversationID, tenantID string, state *domain.ConversationState, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = ports.DefaultStateTTL
	}
	key := codec.StateKey(tenantID, conversationID)

	data, err := codec.Encode(state)
	if err != nil {
		s.logger.Error("error saving conversation state",
			zap.String("conversation_id", conversationID),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return false
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Error("error saving conversation state",
			zap.String("conversation_id", conversationID),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return false
	}

	s.logger.Info("saved state for conversation",
		zap.String("conversation_id", conversationID),
		zap.String("tenant_id", tenantID),
		zap.Duration("ttl", ttl))

	return true
}

// Load returns the stored state or nil when absent or unreadable
func (s *ConversationStore) Load(ctx context.Context, conversationID, tenantID string) *domain.ConversationState {
	return s.Fetch(ctx, conversationID, tenantID).State
}

// Fetch reads and deserializes the stored state
func (s *ConversationStore) Fetch(ctx context.Context, conversationID, tenantID string) ports.LoadResult {
	key := codec.StateKey(tenantID, conversationID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logger.Info("no cached state for conversation",
				zap.String("conversation_id", conversationID),
				zap.String("tenant_id", tenantID))
			return ports.LoadResult{Status: ports.LoadNotFound}
		}
		return s.backendError(conversationID, tenantID, "get", err)
	}

	if len(data) == 0 {
		return ports.LoadResult{Status: ports.LoadNotFound}
	}

	state, err := codec.Decode(data)
	if err != nil {
		return s.backendError(conversationID, tenantID, "decode", err)
	}

	s.logger.Info("loaded state for conversation",
		zap.String("conversation_id", conversationID),
		zap.String("tenant_id", tenantID),
		zap.Int("messages", len(state.Messages)))

	return ports.LoadResult{Status: ports.LoadFound, State: state}
}

func (s *ConversationStore) backendError(conversationID, tenantID, op string, err error) ports.LoadResult {
	s.logger.Error("error loading conversation state",
		zap.String("conversation_id", conversationID),
		zap.String("tenant_id", tenantID),
		zap.String("op", op),
		zap.Error(err))

	return ports.LoadResult{
		Status: ports.LoadBackendError,
		Err:    &domain.StateBackendError{Op: op, Err: err},
	}
}
