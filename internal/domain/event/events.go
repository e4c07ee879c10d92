// Package event defines the domain events the chat write path publishes
// and the realtime gateway consumes. Persistence never depends on the
// transport: a REST call succeeds once its writes are durable, and these
// events are fire-and-forget behind it.
package event

import (
	"time"

	"agrolink/internal/domain/entity"
)

// Topics on the internal event bus.
const (
	TopicMessageSent         = "chat.message.sent"
	TopicConversationUpdated = "chat.conversation.updated"
	TopicMessagesRead        = "chat.messages.read"
)

// MessageSent is published once per persisted message, addressed to the
// recipient only.
type MessageSent struct {
	RecipientID string          `json:"recipient_id"`
	Message     *entity.Message `json:"message"`
	SenderName  string          `json:"sender_name"`
	SenderRole  string          `json:"sender_role"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// ConversationUpdated carries the new inbox row state for the recipient:
// the fresh lastMessage pointer and that user's unread count.
type ConversationUpdated struct {
	RecipientID    string                 `json:"recipient_id"`
	ConversationID string                 `json:"conversation_id"`
	LastMessage    *entity.MessageSummary `json:"last_message"`
	UnreadCount    int                    `json:"unread_count"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// MessagesRead tells the other participant that ReadBy has acknowledged
// the conversation, so sent-message receipts can flip to "seen".
type MessagesRead struct {
	RecipientID    string    `json:"recipient_id"`
	ConversationID string    `json:"conversation_id"`
	ReadBy         string    `json:"read_by"`
	OccurredAt     time.Time `json:"occurred_at"`
}
