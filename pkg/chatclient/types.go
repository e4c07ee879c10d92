// Package chatclient is the Go client for the chat service: a typed REST
// client for the five chat operations plus a Session that keeps an inbox
// and one open thread reconciled against the server's realtime pushes.
package chatclient

import (
	"encoding/json"
	"time"
)

// Quotation statuses as carried on the wire.
const (
	QuotationPending  = "pending"
	QuotationAccepted = "accepted"
	QuotationRejected = "rejected"
)

type Quotation struct {
	CropName     string  `json:"crop_name"`
	Quantity     int     `json:"quantity"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"price_per_unit,omitempty"`
	Total        float64 `json:"total,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	Status       string  `json:"status"`
}

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	RecipientID    string     `json:"recipient_id"`
	Content        string     `json:"content"`
	Quotation      *Quotation `json:"quotation,omitempty"`
	IsRead         bool       `json:"is_read"`
	CreatedAt      time.Time  `json:"created_at"`
	SenderName     string     `json:"sender_name,omitempty"`
	SenderRole     string     `json:"sender_role,omitempty"`
}

type MessageSummary struct {
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	HasQuote  bool      `json:"has_quote"`
	CreatedAt time.Time `json:"created_at"`
}

type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	PhotoURL string `json:"photo_url,omitempty"`
	IsOnline bool   `json:"is_online"`
}

// InboxEntry is one row of the conversation list.
type InboxEntry struct {
	ConversationID string          `json:"conversation_id"`
	OtherUser      *UserProfile    `json:"other_user,omitempty"`
	LastMessage    *MessageSummary `json:"last_message,omitempty"`
	UnreadCount    int             `json:"unread_count"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return e.Code + ": " + e.Message
}

type paginatedData struct {
	Items json.RawMessage `json:"items"`
	Total int64           `json:"total"`
}

// Socket event names, matching the gateway.
const (
	eventJoinRoom            = "join_room"
	eventPing                = "ping"
	eventReceiveMessage      = "receive_message"
	eventConversationUpdated = "conversation_updated"
	eventMessagesRead        = "messages_read"
)

type frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type receiveMessageData struct {
	Message    *Message `json:"message"`
	SenderName string   `json:"sender_name,omitempty"`
	SenderRole string   `json:"sender_role,omitempty"`
}

type conversationUpdatedData struct {
	ConversationID string          `json:"conversation_id"`
	LastMessage    *MessageSummary `json:"last_message,omitempty"`
	UnreadCount    int             `json:"unread_count"`
}

type messagesReadData struct {
	ConversationID string `json:"conversation_id"`
	ReadBy         string `json:"read_by"`
}
