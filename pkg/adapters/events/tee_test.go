package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/dago-turns/pkg/adapters/events/memory"
	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBus struct{}

func (failingBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	return errors.New("publish failed")
}

func (failingBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	return errors.New("subscribe failed")
}

func (failingBus) Close() error { return nil }

func TestTeeEventBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary := memory.NewInMemoryEventBus()
	mirror := memory.NewInMemoryEventBus()
	tee := NewTeeEventBus(primary, mirror)

	fromPrimary := make(chan domain.Event, 1)
	fromMirror := make(chan domain.Event, 1)
	require.NoError(t, tee.Subscribe(ctx, domain.TopicTurnEvents, func(ctx context.Context, e domain.Event) error {
		fromPrimary <- e
		return nil
	}))
	require.NoError(t, mirror.Subscribe(ctx, domain.TopicTurnEvents, func(ctx context.Context, e domain.Event) error {
		fromMirror <- e
		return nil
	}))
	assert.Equal(t, 1, primary.SubscriberCount(domain.TopicTurnEvents))

	require.NoError(t, tee.Publish(ctx, domain.TopicTurnEvents, domain.Event{ID: "e1"}))

	for _, ch := range []chan domain.Event{fromPrimary, fromMirror} {
		select {
		case e := <-ch:
			assert.Equal(t, "e1", e.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	t.Run("mirror failure is reported but others still receive", func(t *testing.T) {
		local := memory.NewInMemoryEventBus()
		got := make(chan domain.Event, 1)
		require.NoError(t, local.Subscribe(ctx, "t", func(ctx context.Context, e domain.Event) error {
			got <- e
			return nil
		}))

		err := NewTeeEventBus(local, failingBus{}).Publish(ctx, "t", domain.Event{ID: "e2"})
		assert.EqualError(t, err, "publish failed")

		select {
		case e := <-got:
			assert.Equal(t, "e2", e.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	})
}
