package usecase

import (
	"context"
	"fmt"
	"time"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/event"
	"agrolink/internal/domain/repository"
	"agrolink/internal/infrastructure/ratelimit"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
)

// EventPublisher is the write path's side of the internal event bus.
// Publishing is fire-and-forget relative to the durable write: failures
// are logged and swallowed, never surfaced to the caller.
type EventPublisher interface {
	Publish(topic string, payload interface{}) error
}

// PresenceReader resolves which users currently hold a live connection.
type PresenceReader interface {
	OnlineMap(ctx context.Context, userIDs []string) (map[string]bool, error)
}

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	listingRepo repository.ListingRepository
	publisher   EventPublisher
	presence    PresenceReader
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	listingRepo repository.ListingRepository,
	publisher EventPublisher,
	presence PresenceReader,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		listingRepo: listingRepo,
		publisher:   publisher,
		presence:    presence,
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	RecipientID string
	Content     string
	Quotation   *QuotationInput
}

type QuotationInput struct {
	ListingID    string
	CropName     string
	Quantity     int
	Unit         string
	PricePerUnit float64
	Total        float64
	Notes        string
}

// InboxEntry is one row of a user's conversation list, with the unread
// count scoped to that user.
type InboxEntry struct {
	ConversationID string                 `json:"conversation_id"`
	OtherUser      *entity.UserProfile    `json:"other_user,omitempty"`
	LastMessage    *entity.MessageSummary `json:"last_message,omitempty"`
	UnreadCount    int                    `json:"unread_count"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

type MessageResponse struct {
	*entity.Message
	SenderName string `json:"sender_name,omitempty"`
	SenderRole string `json:"sender_role,omitempty"`
}

// ListConversations returns the caller's inbox ordered most recently
// active first. Read-only.
func (uc *ChatUseCase) ListConversations(ctx context.Context, userID string) ([]*InboxEntry, error) {
	conversations, err := uc.chatRepo.ListConversations(ctx, userID)
	if err != nil {
		logger.Error("ListConversations: failed to list for user %s: %v", userID, err)
		return nil, err
	}

	otherIDs := make([]string, 0, len(conversations))
	for _, conv := range conversations {
		if other := conv.OtherParticipant(userID); other != "" {
			otherIDs = append(otherIDs, other)
		}
	}
	online := uc.onlineMap(ctx, otherIDs)

	entries := make([]*InboxEntry, 0, len(conversations))
	for _, conv := range conversations {
		entry := &InboxEntry{
			ConversationID: conv.ID,
			LastMessage:    conv.LastMessage,
			UnreadCount:    conv.UnreadFor(userID),
			UpdatedAt:      conv.UpdatedAt,
		}

		otherID := conv.OtherParticipant(userID)
		if otherID != "" {
			other, err := uc.userRepo.GetByID(ctx, otherID)
			if err != nil {
				logger.Warn("ListConversations: participant %s of %s not found: %v", otherID, conv.ID, err)
			} else {
				profile := other.PublicProfile()
				profile.IsOnline = online[otherID]
				entry.OtherUser = profile
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// GetHistoryAndAcknowledge returns the chronological history between the
// caller and otherUserID, then marks everything addressed to the caller
// as read. Reading a thread implicitly acknowledges it; the side effect
// is part of this operation's name on purpose. A pair with no
// conversation yields an empty history, not an error.
func (uc *ChatUseCase) GetHistoryAndAcknowledge(ctx context.Context, userID, otherUserID string, limit, offset int) ([]*MessageResponse, int64, error) {
	conv, err := uc.chatRepo.FindConversation(ctx, userID, otherUserID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return []*MessageResponse{}, 0, nil
		}
		logger.Error("GetHistoryAndAcknowledge: lookup failed for %s/%s: %v", userID, otherUserID, err)
		return nil, 0, err
	}

	messages, total, err := uc.chatRepo.ListMessages(ctx, conv.ID, limit, offset)
	if err != nil {
		logger.Error("GetHistoryAndAcknowledge: failed to list messages of %s: %v", conv.ID, err)
		return nil, 0, err
	}

	names := uc.displayNames(ctx, conv.Participants)
	responses := make([]*MessageResponse, 0, len(messages))
	for _, msg := range messages {
		responses = append(responses, &MessageResponse{
			Message:    msg,
			SenderName: names[msg.SenderID].name,
			SenderRole: names[msg.SenderID].role,
		})
	}

	flipped, err := uc.chatRepo.MarkConversationRead(ctx, conv.ID, userID)
	if err != nil {
		logger.Error("GetHistoryAndAcknowledge: failed to acknowledge %s for %s: %v", conv.ID, userID, err)
		return nil, 0, err
	}
	if flipped > 0 {
		uc.publishRead(conv, userID)
	}

	return responses, total, nil
}

// SendMessage persists a message from senderID and notifies the
// recipient's channel. The durable write decides success; the push is
// best-effort behind it.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	action := ratelimit.ActionSendMessage
	if input.Quotation != nil {
		action = ratelimit.ActionSendQuotation
	}
	if allowed, wait := uc.rateLimiter.Allow(senderID, action); !allowed {
		logger.Warn("SendMessage: user %s rate limited, retry in %v", senderID, wait)
		return nil, errors.TooManyRequests("You are sending too quickly, please slow down", wait)
	}

	if senderID == input.RecipientID {
		return nil, errors.BadRequest("You cannot message yourself", nil)
	}

	var quotation *entity.Quotation
	if input.Quotation != nil {
		var err error
		if quotation, err = uc.buildQuotation(ctx, input.Quotation); err != nil {
			return nil, err
		}
		if input.Content == "" {
			input.Content = quotationContent(input.Quotation, quotation)
		}
	}
	if input.Content == "" {
		return nil, errors.BadRequest("Message content is required", nil)
	}

	recipient, err := uc.userRepo.GetByID(ctx, input.RecipientID)
	if err != nil {
		return nil, errors.NotFound("Recipient", err)
	}
	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, errors.NotFound("Sender", err)
	}

	conv, created, err := uc.chatRepo.ResolveConversation(ctx, senderID, recipient.ID)
	if err != nil {
		logger.Error("SendMessage: failed to resolve conversation %s/%s: %v", senderID, recipient.ID, err)
		return nil, err
	}
	if created {
		logger.Info("SendMessage: conversation %s created for %s/%s", conv.ID, senderID, recipient.ID)
	}

	message := &entity.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipient.ID,
		Content:        input.Content,
		Quotation:      quotation,
		IsRead:         false,
	}

	if err := uc.chatRepo.AppendMessage(ctx, message); err != nil {
		logger.Error("SendMessage: failed to append message to %s: %v", conv.ID, err)
		return nil, err
	}

	uc.publish(event.TopicMessageSent, event.MessageSent{
		RecipientID: recipient.ID,
		Message:     message,
		SenderName:  sender.Name,
		SenderRole:  sender.Role,
		OccurredAt:  message.CreatedAt,
	})
	// The pushed count is the pre-write snapshot plus this message, so a
	// concurrent send can make it stale. That is fine for a best-effort
	// badge hint: the client's next REST fetch carries the exact ledger.
	uc.publish(event.TopicConversationUpdated, event.ConversationUpdated{
		RecipientID:    recipient.ID,
		ConversationID: conv.ID,
		LastMessage:    message.Summary(),
		UnreadCount:    conv.UnreadFor(recipient.ID) + 1,
		OccurredAt:     message.CreatedAt,
	})

	return &MessageResponse{
		Message:    message,
		SenderName: sender.Name,
		SenderRole: sender.Role,
	}, nil
}

// MarkAsRead acknowledges every message addressed to userID in the
// conversation and tells the other participant. Idempotent.
func (uc *ChatUseCase) MarkAsRead(ctx context.Context, userID, conversationID string) error {
	conv, err := uc.chatRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}

	if _, err := uc.chatRepo.MarkConversationRead(ctx, conversationID, userID); err != nil {
		logger.Error("MarkAsRead: failed for %s in %s: %v", userID, conversationID, err)
		return err
	}

	uc.publishRead(conv, userID)
	return nil
}

func (uc *ChatUseCase) buildQuotation(ctx context.Context, input *QuotationInput) (*entity.Quotation, error) {
	q := &entity.Quotation{
		CropName:     input.CropName,
		Quantity:     input.Quantity,
		Unit:         input.Unit,
		PricePerUnit: input.PricePerUnit,
		Total:        input.Total,
		Notes:        input.Notes,
		Status:       entity.QuotationPending,
	}

	// Listing context only pre-fills what the buyer left blank.
	if input.ListingID != "" && uc.listingRepo != nil {
		listing, err := uc.listingRepo.GetByID(ctx, input.ListingID)
		if err != nil {
			logger.Warn("buildQuotation: listing %s not found: %v", input.ListingID, err)
		} else {
			if q.CropName == "" {
				q.CropName = listing.CropName
			}
			if q.Unit == "" {
				q.Unit = listing.Unit
			}
			if q.PricePerUnit == 0 {
				q.PricePerUnit = listing.PricePerUnit
			}
		}
	}

	if q.CropName == "" {
		return nil, errors.BadRequest("Quotation crop name is required", nil)
	}
	if q.Quantity < 1 {
		return nil, errors.BadRequest("Quotation quantity must be at least 1", nil)
	}
	if q.Unit == "" {
		return nil, errors.BadRequest("Quotation unit is required", nil)
	}
	if q.PricePerUnit < 0 {
		return nil, errors.BadRequest("Quotation price per unit cannot be negative", nil)
	}

	return q, nil
}

func quotationContent(input *QuotationInput, q *entity.Quotation) string {
	if input.Notes != "" {
		return input.Notes
	}
	return fmt.Sprintf("Quotation request for %s", q.CropName)
}

func (uc *ChatUseCase) publishRead(conv *entity.Conversation, readBy string) {
	uc.publish(event.TopicMessagesRead, event.MessagesRead{
		RecipientID:    conv.OtherParticipant(readBy),
		ConversationID: conv.ID,
		ReadBy:         readBy,
		OccurredAt:     time.Now().UTC(),
	})
}

func (uc *ChatUseCase) publish(topic string, payload interface{}) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(topic, payload); err != nil {
		logger.Warn("publish: dropping %s event: %v", topic, err)
	}
}

func (uc *ChatUseCase) onlineMap(ctx context.Context, userIDs []string) map[string]bool {
	if uc.presence == nil || len(userIDs) == 0 {
		return map[string]bool{}
	}
	online, err := uc.presence.OnlineMap(ctx, userIDs)
	if err != nil {
		logger.Warn("onlineMap: presence lookup failed: %v", err)
		return map[string]bool{}
	}
	return online
}

type displayInfo struct {
	name string
	role string
}

func (uc *ChatUseCase) displayNames(ctx context.Context, userIDs []string) map[string]displayInfo {
	names := make(map[string]displayInfo, len(userIDs))
	for _, id := range userIDs {
		user, err := uc.userRepo.GetByID(ctx, id)
		if err != nil {
			logger.Warn("displayNames: user %s not found: %v", id, err)
			continue
		}
		names[id] = displayInfo{name: user.Name, role: user.Role}
	}
	return names
}
