package entity

import "time"

// Conversation is the durable pairing of two users plus bookkeeping.
// Exactly one conversation exists per unordered pair of participants;
// the repository enforces this with a canonical pair-keyed document ID.
type Conversation struct {
	ID           string          `json:"id" firestore:"id"`
	Participants []string        `json:"participants" firestore:"participants"`
	LastMessage  *MessageSummary `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	UnreadCount  map[string]int  `json:"unread_count" firestore:"unreadCount"` // userID -> pending messages; absent key == 0
	CreatedAt    time.Time       `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time       `json:"updated_at" firestore:"updatedAt"`
}

// MessageSummary is the denormalized last-message pointer stored on the
// conversation document so inbox listings need no subcollection reads.
type MessageSummary struct {
	MessageID string    `json:"message_id" firestore:"messageId"`
	SenderID  string    `json:"sender_id" firestore:"senderId"`
	Content   string    `json:"content" firestore:"content"`
	HasQuote  bool      `json:"has_quote" firestore:"hasQuote"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the counterpart of userID, or "" when userID
// is not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// UnreadFor returns the pending-message count for userID, treating an
// absent ledger key as zero.
func (c *Conversation) UnreadFor(userID string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}
