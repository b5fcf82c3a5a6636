package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	agentsmemory "github.com/aescanero/dago-turns/pkg/adapters/agents/memory"
	eventsmemory "github.com/aescanero/dago-turns/pkg/adapters/events/memory"
	"github.com/aescanero/dago-turns/pkg/adapters/executor/echo"
	metrics "github.com/aescanero/dago-turns/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/dago-turns/pkg/adapters/storage/memory"
	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// spyStore wraps a store and counts calls; failSave and failLoad simulate an
// unhealthy backend.
type spyStore struct {
	ports.ConversationStore

	mu       sync.Mutex
	saves    int
	loads    int
	failSave bool
	failLoad bool
}

func (s *spyStore) Save(ctx context.Context, conversationID, tenantID string, state *domain.ConversationState, ttl time.Duration) bool {
	s.mu.Lock()
	s.saves++
	fail := s.failSave
	s.mu.Unlock()

	if fail {
		return false
	}
	return s.ConversationStore.Save(ctx, conversationID, tenantID, state, ttl)
}

func (s *spyStore) Fetch(ctx context.Context, conversationID, tenantID string) ports.LoadResult {
	s.mu.Lock()
	s.loads++
	fail := s.failLoad
	s.mu.Unlock()

	if fail {
		return ports.LoadResult{Status: ports.LoadBackendError, Err: errors.New("connection refused")}
	}
	return s.ConversationStore.Fetch(ctx, conversationID, tenantID)
}

func (s *spyStore) counts() (saves, loads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.loads
}

type executorFunc func(ctx context.Context, input ports.ExecutionInput) (*ports.ExecutionOutput, error)

func (f executorFunc) Execute(ctx context.Context, input ports.ExecutionInput) (*ports.ExecutionOutput, error) {
	return f(ctx, input)
}

type testEnv struct {
	manager *Manager
	backing *storagememory.ConversationStore
	store   *spyStore
	agents  *agentsmemory.AgentRepository
	bus     *eventsmemory.InMemoryEventBus
}

func newTestEnv(t *testing.T, exec ports.Executor) *testEnv {
	t.Helper()

	if exec == nil {
		exec = echo.NewExecutor(zap.NewNop())
	}

	backing := storagememory.NewConversationStore()
	store := &spyStore{ConversationStore: backing}
	agents := agentsmemory.NewAgentRepository()
	bus := eventsmemory.NewInMemoryEventBus()

	manager := NewManager(
		store,
		agents,
		exec,
		bus,
		metrics.NewCollector(prometheus.NewRegistry()),
		NewValidator(),
		zap.NewNop(),
		time.Hour,
	)

	return &testEnv{manager: manager, backing: backing, store: store, agents: agents, bus: bus}
}

func validFlow() domain.FlowGraph {
	return domain.FlowGraph{
		"nodes": []interface{}{
			map[string]interface{}{"id": "kb_search", "type": "tool"},
		},
		"edges": []interface{}{},
	}
}

func turn(conversationID, tenantID, message string) domain.TurnRequest {
	return domain.TurnRequest{
		AgentID:        "agent-1",
		ConversationID: conversationID,
		TenantID:       tenantID,
		Message:        message,
		Flow:           validFlow(),
	}
}

func TestProcessTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("first turn starts from empty state", func(t *testing.T) {
		env := newTestEnv(t, nil)

		result, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "hello"))
		require.NoError(t, err)

		assert.Equal(t, "[Echo] Agent 'agent-1' received: hello", result.Response)
		assert.Equal(t, []domain.Message{
			{Role: domain.RoleUser, Content: "hello"},
			{Role: domain.RoleAssistant, Content: result.Response},
		}, result.State.Messages)
		assert.Equal(t, 2, result.MessageCount)
		assert.True(t, result.StatePersisted)
		assert.NotEmpty(t, result.TurnID)

		stored := env.backing.Load(ctx, "c1", "t1")
		require.NotNil(t, stored)
		assert.Equal(t, result.State.Messages, stored.Messages)
		assert.Equal(t, "hello", stored.UserMessage)
		assert.Equal(t, result.Response, stored.Response)
	})

	t.Run("second turn continues the history", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "hello"))
		require.NoError(t, err)
		result, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "again"))
		require.NoError(t, err)

		require.Equal(t, 4, result.MessageCount)
		assert.Equal(t, "hello", result.State.Messages[0].Content)
		assert.Equal(t, domain.RoleUser, result.State.Messages[2].Role)
		assert.Equal(t, "again", result.State.Messages[2].Content)
		assert.Equal(t, domain.RoleAssistant, result.State.Messages[3].Role)
	})

	t.Run("executor sees history including the new user message", func(t *testing.T) {
		var seen ports.ExecutionInput
		env := newTestEnv(t, executorFunc(func(ctx context.Context, input ports.ExecutionInput) (*ports.ExecutionOutput, error) {
			seen = input
			return &ports.ExecutionOutput{Response: "ok", Metadata: map[string]interface{}{"node": "kb_search"}}, nil
		}))

		req := turn("c1", "t1", "hello")
		req.Metadata = map[string]interface{}{"channel": "web"}
		result, err := env.manager.ProcessTurn(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, []domain.Message{{Role: domain.RoleUser, Content: "hello"}}, seen.Messages)
		assert.Equal(t, "web", seen.Metadata["channel"])
		assert.Equal(t, "agent-1", seen.AgentID)
		assert.Equal(t, validFlow(), seen.Flow)

		assert.Equal(t, "web", result.State.Metadata["channel"])
		assert.Equal(t, "kb_search", result.State.Metadata["node"])
	})

	t.Run("conversations are isolated by tenant", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.manager.ProcessTurn(ctx, turn("c1", "tenantA", "from A"))
		require.NoError(t, err)

		result, err := env.manager.ProcessTurn(ctx, turn("c1", "tenantB", "from B"))
		require.NoError(t, err)
		assert.Equal(t, 2, result.MessageCount)
		assert.Equal(t, "from B", result.State.Messages[0].Content)
	})

	t.Run("invalid flow never touches the store", func(t *testing.T) {
		env := newTestEnv(t, nil)

		req := turn("c1", "t1", "hello")
		req.Flow = domain.FlowGraph{"nodes": []interface{}{map[string]interface{}{"id": "a"}}}

		_, err := env.manager.ProcessTurn(ctx, req)

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, []string{"Missing 'edges' array", "Node a missing 'type'"}, validationErr.Errors)

		saves, loads := env.store.counts()
		assert.Zero(t, saves)
		assert.Zero(t, loads)
	})

	t.Run("failed execution leaves stored state unchanged", func(t *testing.T) {
		fail := false
		env := newTestEnv(t, executorFunc(func(ctx context.Context, input ports.ExecutionInput) (*ports.ExecutionOutput, error) {
			if fail {
				return nil, errors.New("node crashed")
			}
			return &ports.ExecutionOutput{Response: "fine"}, nil
		}))

		_, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "hello"))
		require.NoError(t, err)
		before, ok := env.backing.Raw("c1", "t1")
		require.True(t, ok)

		fail = true
		_, err = env.manager.ProcessTurn(ctx, turn("c1", "t1", "boom"))

		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.EqualError(t, execErr.Err, "node crashed")

		after, ok := env.backing.Raw("c1", "t1")
		require.True(t, ok)
		assert.Equal(t, before, after)

		saves, _ := env.store.counts()
		assert.Equal(t, 1, saves)
	})

	t.Run("nil executor output is an execution failure", func(t *testing.T) {
		env := newTestEnv(t, executorFunc(func(ctx context.Context, input ports.ExecutionInput) (*ports.ExecutionOutput, error) {
			return nil, nil
		}))

		_, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "hello"))
		var execErr *domain.ExecutionError
		assert.ErrorAs(t, err, &execErr)

		_, ok := env.backing.Raw("c1", "t1")
		assert.False(t, ok)
	})

	t.Run("failed save does not fail the turn", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.store.failSave = true

		result, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "hello"))
		require.NoError(t, err)
		assert.False(t, result.StatePersisted)
		assert.Equal(t, 2, result.MessageCount)

		assert.Nil(t, env.backing.Load(ctx, "c1", "t1"))
	})

	t.Run("unreadable prior state is treated as a new conversation", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "hello"))
		require.NoError(t, err)

		env.store.failLoad = true
		result, err := env.manager.ProcessTurn(ctx, turn("c1", "t1", "again"))
		require.NoError(t, err)
		assert.Equal(t, 2, result.MessageCount)
		assert.Equal(t, "again", result.State.Messages[0].Content)
	})

	t.Run("concurrent turns on different conversations", func(t *testing.T) {
		env := newTestEnv(t, nil)

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := env.manager.ProcessTurn(ctx, turn(fmt.Sprintf("c%d", i), "t1", "hi"))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
		for i := 0; i < 20; i++ {
			state := env.backing.Load(ctx, fmt.Sprintf("c%d", i), "t1")
			require.NotNil(t, state)
			assert.Len(t, state.Messages, 2)
		}
	})
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	request := domain.ExecuteRequest{
		AgentID:        "agent-1",
		ConversationID: "c1",
		TenantID:       "t1",
		Message:        "hello",
	}

	t.Run("published agent", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.agents.Put(domain.Agent{ID: "agent-1", TenantID: "t1", Status: domain.AgentStatusPublished, FlowGraph: validFlow()})

		result, err := env.manager.Execute(ctx, request)
		require.NoError(t, err)
		assert.Equal(t, 2, result.MessageCount)
	})

	t.Run("unknown agent", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.manager.Execute(ctx, request)
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("agent of another tenant", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.agents.Put(domain.Agent{ID: "agent-1", TenantID: "t2", Status: domain.AgentStatusPublished, FlowGraph: validFlow()})

		_, err := env.manager.Execute(ctx, request)
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("draft agent", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.agents.Put(domain.Agent{ID: "agent-1", TenantID: "t1", Status: domain.AgentStatusDraft, FlowGraph: validFlow()})

		_, err := env.manager.Execute(ctx, request)
		var notPublished *domain.AgentNotPublishedError
		require.ErrorAs(t, err, &notPublished)
		assert.Equal(t, domain.AgentStatusDraft, notPublished.Status)

		saves, loads := env.store.counts()
		assert.Zero(t, saves)
		assert.Zero(t, loads)
	})
}

func TestTurnEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv(t, nil)

	events := make(chan domain.Event, 4)
	require.NoError(t, env.bus.Subscribe(ctx, domain.TopicTurnEvents, func(ctx context.Context, e domain.Event) error {
		events <- e
		return nil
	}))

	req := turn("c1", "t1", "hello")
	req.TurnID = "turn-1"
	_, err := env.manager.ProcessTurn(ctx, req)
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, domain.EventTypeTurnCompleted, e.Type)
		assert.Equal(t, "turn-1", e.TurnID)
		assert.Equal(t, "c1", e.ConversationID)
		assert.Equal(t, 2, e.Data["message_count"])
	case <-time.After(time.Second):
		t.Fatal("no completion event")
	}

	bad := turn("c1", "t1", "hello")
	bad.Flow = domain.FlowGraph{}
	_, err = env.manager.ProcessTurn(ctx, bad)
	require.Error(t, err)

	select {
	case e := <-events:
		assert.Equal(t, domain.EventTypeTurnFailed, e.Type)
		assert.Equal(t, outcomeValidationFailed, e.Data["outcome"])
		assert.Equal(t, []string{"Missing 'nodes' array", "Missing 'edges' array"}, e.Data["errors"])
	case <-time.After(time.Second):
		t.Fatal("no failure event")
	}
}

func TestShutdown(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	env := newTestEnv(t, executorFunc(func(ctx context.Context, input ports.ExecutionInput) (*ports.ExecutionOutput, error) {
		close(started)
		<-release
		return &ports.ExecutionOutput{Response: "late"}, nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := env.manager.ProcessTurn(context.Background(), turn("c1", "t1", "hello"))
		done <- err
	}()
	<-started

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, env.manager.Shutdown(shortCtx))

	_, err := env.manager.ProcessTurn(context.Background(), turn("c2", "t1", "hello"))
	assert.ErrorIs(t, err, ErrShuttingDown)

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, env.manager.Shutdown(context.Background()))
	assert.NotNil(t, env.backing.Load(context.Background(), "c1", "t1"))
}
