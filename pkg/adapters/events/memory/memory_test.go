package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventBus(t *testing.T) {
	t.Run("delivers to every subscriber", func(t *testing.T) {
		bus := NewInMemoryEventBus()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		got := map[string]int{}
		for _, name := range []string{"a", "b"} {
			name := name
			require.NoError(t, bus.Subscribe(ctx, domain.TopicTurnEvents, func(ctx context.Context, e domain.Event) error {
				mu.Lock()
				got[name]++
				mu.Unlock()
				return nil
			}))
		}

		require.NoError(t, bus.Publish(ctx, domain.TopicTurnEvents, domain.Event{ID: "e1", Type: domain.EventTypeTurnCompleted}))

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return got["a"] == 1 && got["b"] == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("other topics are not delivered", func(t *testing.T) {
		bus := NewInMemoryEventBus()
		ctx := context.Background()

		delivered := make(chan domain.Event, 1)
		require.NoError(t, bus.Subscribe(ctx, domain.TopicTurnRequests, func(ctx context.Context, e domain.Event) error {
			delivered <- e
			return nil
		}))

		require.NoError(t, bus.Publish(ctx, domain.TopicTurnEvents, domain.Event{ID: "e1"}))

		select {
		case <-delivered:
			t.Fatal("unexpected delivery")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("cancelled subscription is removed", func(t *testing.T) {
		bus := NewInMemoryEventBus()
		ctx, cancel := context.WithCancel(context.Background())

		require.NoError(t, bus.Subscribe(ctx, domain.TopicTurnEvents, func(ctx context.Context, e domain.Event) error { return nil }))
		require.NoError(t, bus.Subscribe(context.Background(), domain.TopicTurnEvents, func(ctx context.Context, e domain.Event) error { return nil }))
		assert.Equal(t, 2, bus.SubscriberCount(domain.TopicTurnEvents))

		cancel()
		assert.Eventually(t, func() bool {
			return bus.SubscriberCount(domain.TopicTurnEvents) == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("close drops subscribers", func(t *testing.T) {
		bus := NewInMemoryEventBus()
		require.NoError(t, bus.Subscribe(context.Background(), "x", func(ctx context.Context, e domain.Event) error { return nil }))
		require.NoError(t, bus.Close())
		assert.Equal(t, 0, bus.SubscriberCount("x"))
	})
}
