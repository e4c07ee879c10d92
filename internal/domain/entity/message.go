package entity

import "time"

// Quotation statuses.
const (
	QuotationPending  = "pending"
	QuotationAccepted = "accepted"
	QuotationRejected = "rejected"
)

type Message struct {
	ID             string     `json:"id" firestore:"id"`
	ConversationID string     `json:"conversation_id" firestore:"conversationId"`
	SenderID       string     `json:"sender_id" firestore:"senderId"`
	RecipientID    string     `json:"recipient_id" firestore:"recipientId"`
	Content        string     `json:"content" firestore:"content"`
	Quotation      *Quotation `json:"quotation,omitempty" firestore:"quotation,omitempty"`
	IsRead         bool       `json:"is_read" firestore:"isRead"`
	CreatedAt      time.Time  `json:"created_at" firestore:"createdAt"`
}

// Quotation is a structured price proposal embedded in a chat message.
// Total is carried as submitted; the server never computes it.
type Quotation struct {
	CropName     string  `json:"crop_name" firestore:"cropName"`
	Quantity     int     `json:"quantity" firestore:"quantity"`
	Unit         string  `json:"unit" firestore:"unit"`
	PricePerUnit float64 `json:"price_per_unit,omitempty" firestore:"pricePerUnit,omitempty"`
	Total        float64 `json:"total,omitempty" firestore:"total,omitempty"`
	Notes        string  `json:"notes,omitempty" firestore:"notes,omitempty"`
	Status       string  `json:"status" firestore:"status"`
}

// Summary collapses the message into the form stored on the conversation.
func (m *Message) Summary() *MessageSummary {
	return &MessageSummary{
		MessageID: m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		HasQuote:  m.Quotation != nil,
		CreatedAt: m.CreatedAt,
	}
}
