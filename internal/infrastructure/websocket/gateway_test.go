package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/event"
	"agrolink/internal/infrastructure/eventbus"
)

func joinedClient(t *testing.T, ctx context.Context, m *Manager, userID string) *Client {
	t.Helper()
	client := &Client{UserID: userID, Send: make(chan []byte, 8)}
	m.Register <- client
	require.True(t, m.JoinRoom(ctx, client, userID))
	return client
}

func readFrame(t *testing.T, client *Client) Frame {
	t.Helper()
	select {
	case raw := <-client.Send:
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame pushed")
		return Frame{}
	}
}

func TestGatewayPushesMessageToRecipientRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Close()

	manager := NewManager(nil)
	manager.Start(ctx)

	gateway := NewGateway(manager, bus)
	require.NoError(t, gateway.Start(ctx))

	recipient := joinedClient(t, ctx, manager, "buyer-b")

	require.NoError(t, bus.Publish(event.TopicMessageSent, event.MessageSent{
		RecipientID: "buyer-b",
		Message: &entity.Message{
			ID:             "msg-1",
			ConversationID: "buyer-b_farmer-a",
			SenderID:       "farmer-a",
			RecipientID:    "buyer-b",
			Content:        "Interested in your tomatoes?",
		},
		SenderName: "Asep",
		SenderRole: entity.RoleFarmer,
	}))

	frame := readFrame(t, recipient)
	assert.Equal(t, EventReceiveMessage, frame.Event)

	var data struct {
		Message    *entity.Message `json:"message"`
		SenderName string          `json:"sender_name"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	require.NotNil(t, data.Message)
	assert.Equal(t, "msg-1", data.Message.ID)
	assert.Equal(t, "Asep", data.SenderName)
}

func TestGatewayConversationUpdatedFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Close()

	manager := NewManager(nil)
	manager.Start(ctx)

	gateway := NewGateway(manager, bus)
	require.NoError(t, gateway.Start(ctx))

	recipient := joinedClient(t, ctx, manager, "buyer-b")

	require.NoError(t, bus.Publish(event.TopicConversationUpdated, event.ConversationUpdated{
		RecipientID:    "buyer-b",
		ConversationID: "buyer-b_farmer-a",
		UnreadCount:    4,
	}))

	frame := readFrame(t, recipient)
	assert.Equal(t, EventConversationUpdated, frame.Event)

	var data struct {
		ConversationID string `json:"conversation_id"`
		UnreadCount    int    `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, "buyer-b_farmer-a", data.ConversationID)
	assert.Equal(t, 4, data.UnreadCount)
}

func TestGatewayDropsFrameForOfflineUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Close()

	manager := NewManager(nil)
	manager.Start(ctx)

	gateway := NewGateway(manager, bus)
	require.NoError(t, gateway.Start(ctx))

	// Nobody joined; publish must not panic or block.
	require.NoError(t, bus.Publish(event.TopicMessagesRead, event.MessagesRead{
		RecipientID:    "buyer-b",
		ConversationID: "buyer-b_farmer-a",
		ReadBy:         "farmer-a",
	}))

	time.Sleep(100 * time.Millisecond)
}

func TestJoinRoomRejectsForeignIdentity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := NewManager(nil)
	manager.Start(ctx)

	client := &Client{UserID: "buyer-b", Send: make(chan []byte, 1)}
	manager.Register <- client

	assert.False(t, manager.JoinRoom(ctx, client, "farmer-a"))
	assert.True(t, manager.JoinRoom(ctx, client, "buyer-b"))
}

func TestSendToUserBeforeJoinIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := NewManager(nil)
	manager.Start(ctx)

	client := &Client{UserID: "buyer-b", Send: make(chan []byte, 1)}
	manager.Register <- client

	// Registered but not joined: the room does not exist yet.
	manager.SendToUser("buyer-b", NewFrame(EventPong, map[string]string{"status": "alive"}))

	select {
	case <-client.Send:
		t.Fatal("frame delivered to a client that never joined its room")
	case <-time.After(100 * time.Millisecond):
	}
}
