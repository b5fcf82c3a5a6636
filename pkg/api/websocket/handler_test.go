package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventsmemory "github.com/aescanero/dago-turns/pkg/adapters/events/memory"
	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStreamServer(t *testing.T) (*httptest.Server, *eventsmemory.InMemoryEventBus) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	bus := eventsmemory.NewInMemoryEventBus()
	router := gin.New()
	router.GET("/api/v1/conversations/:id/ws", NewHandler(bus, zap.NewNop()).HandleConversationStream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, bus
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestConversationStream(t *testing.T) {
	srv, bus := newStreamServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/v1/conversations/c1/ws?tenant_id=t1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(domain.TopicTurnEvents) == 1
	}, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	publish := func(tenant, conversation, turn string) {
		require.NoError(t, bus.Publish(ctx, domain.TopicTurnEvents, domain.Event{
			ID:             turn,
			Type:           domain.EventTypeTurnCompleted,
			TurnID:         turn,
			TenantID:       tenant,
			ConversationID: conversation,
		}))
	}

	publish("t2", "c1", "other-tenant")
	publish("t1", "c2", "other-conversation")
	publish("t1", "c1", "mine")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event domain.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "mine", event.TurnID)
	assert.Equal(t, domain.EventTypeTurnCompleted, event.Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(domain.TopicTurnEvents) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConversationStreamRequiresTenant(t *testing.T) {
	srv, _ := newStreamServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/v1/conversations/c1/ws"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
