package repository

import (
	"context"

	"agrolink/internal/domain/entity"
)

type ChatRepository interface {
	// ResolveConversation finds the single conversation for the unordered
	// pair, creating it when absent. Safe under concurrent calls for the
	// same pair: the storage layer's uniqueness constraint decides the
	// winner and losers re-fetch. The bool reports whether this call
	// created the conversation.
	ResolveConversation(ctx context.Context, userA, userB string) (*entity.Conversation, bool, error)

	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)

	// FindConversation looks up the pair's conversation without creating it.
	FindConversation(ctx context.Context, userA, userB string) (*entity.Conversation, error)

	// ListConversations returns every conversation userID participates in,
	// ordered by updatedAt descending.
	ListConversations(ctx context.Context, userID string) ([]*entity.Conversation, error)

	// AppendMessage persists the message and applies the conversation
	// bookkeeping (lastMessage, updatedAt bump, increment of the
	// recipient's unread counter) as one storage-level unit, so a failed
	// ledger update never leaves an orphan message. The counter mutation
	// is an atomic per-key increment, never read-modify-write.
	AppendMessage(ctx context.Context, message *entity.Message) error

	// ListMessages returns the conversation's messages in chronological
	// (createdAt ascending) order. limit <= 0 means no limit.
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)

	// MarkConversationRead flips isRead on every message addressed to
	// userID and resets the user's unread counter to zero. Idempotent;
	// returns the number of messages flipped.
	MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error)
}
