package ports

import (
	"context"
	"time"

	"github.com/aescanero/dago-turns/pkg/domain"
)

// DefaultStateTTL is the expiry applied to saved conversation state
const DefaultStateTTL = 24 * time.Hour

// LoadStatus distinguishes the outcomes of a state lookup
type LoadStatus int

const (
	LoadFound LoadStatus = iota
	LoadNotFound
	LoadBackendError
)

func (s LoadStatus) String() string {
	switch s {
	case LoadFound:
		return "found"
	case LoadNotFound:
		return "not_found"
	case LoadBackendError:
		return "backend_error"
	default:
		return "unknown"
	}
}

// LoadResult is the outcome of ConversationStore.Fetch.
// State is set only for LoadFound, Err only for LoadBackendError.
type LoadResult struct {
	Status LoadStatus
	State  *domain.ConversationState
	Err    error
}

// ConversationStore persists conversation state per (tenant, conversation).
// Neither Save nor Load return backend errors to the caller: Save reports
// failure as false and Load reports it as absent state.
type ConversationStore interface {
	// Save writes state with an expiry of ttl, resetting any previous expiry.
	Save(ctx context.Context, conversationID, tenantID string, state *domain.ConversationState, ttl time.Duration) bool

	// Load returns the stored state, or nil when it is absent or unreadable.
	Load(ctx context.Context, conversationID, tenantID string) *domain.ConversationState

	// Fetch is Load with the absent cases told apart.
	Fetch(ctx context.Context, conversationID, tenantID string) LoadResult
}
