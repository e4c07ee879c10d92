package websocket

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	"agrolink/internal/domain/event"
	"agrolink/pkg/logger"
)

// Subscriber is the event-bus side the gateway consumes from.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Gateway translates domain events into socket frames addressed to a
// single recipient's room. It is the only consumer of the chat topics;
// the write path never touches the socket layer directly.
type Gateway struct {
	manager    *Manager
	subscriber Subscriber
}

func NewGateway(manager *Manager, subscriber Subscriber) *Gateway {
	return &Gateway{manager: manager, subscriber: subscriber}
}

// Start subscribes to the chat topics and dispatches until ctx ends.
func (g *Gateway) Start(ctx context.Context) error {
	routes := []struct {
		topic     string
		translate func([]byte) (string, []byte)
	}{
		{event.TopicMessageSent, g.translateMessageSent},
		{event.TopicConversationUpdated, g.translateConversationUpdated},
		{event.TopicMessagesRead, g.translateMessagesRead},
	}

	for _, route := range routes {
		messages, err := g.subscriber.Subscribe(ctx, route.topic)
		if err != nil {
			return err
		}
		go g.dispatch(route.topic, messages, route.translate)
	}
	return nil
}

func (g *Gateway) dispatch(topic string, messages <-chan *message.Message, translate func([]byte) (string, []byte)) {
	for msg := range messages {
		recipientID, frame := translate(msg.Payload)
		if recipientID == "" || frame == nil {
			logger.Warn("Gateway: dropping malformed event on %s", topic)
		} else {
			g.manager.SendToUser(recipientID, frame)
		}
		msg.Ack()
	}
}

func (g *Gateway) translateMessageSent(payload []byte) (string, []byte) {
	var ev event.MessageSent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Message == nil {
		return "", nil
	}
	return ev.RecipientID, NewFrame(EventReceiveMessage, map[string]interface{}{
		"message":     ev.Message,
		"sender_name": ev.SenderName,
		"sender_role": ev.SenderRole,
	})
}

func (g *Gateway) translateConversationUpdated(payload []byte) (string, []byte) {
	var ev event.ConversationUpdated
	if err := json.Unmarshal(payload, &ev); err != nil || ev.ConversationID == "" {
		return "", nil
	}
	return ev.RecipientID, NewFrame(EventConversationUpdated, map[string]interface{}{
		"conversation_id": ev.ConversationID,
		"last_message":    ev.LastMessage,
		"unread_count":    ev.UnreadCount,
	})
}

func (g *Gateway) translateMessagesRead(payload []byte) (string, []byte) {
	var ev event.MessagesRead
	if err := json.Unmarshal(payload, &ev); err != nil || ev.ConversationID == "" {
		return "", nil
	}
	return ev.RecipientID, NewFrame(EventMessagesRead, map[string]interface{}{
		"conversation_id": ev.ConversationID,
		"read_by":         ev.ReadBy,
	})
}
