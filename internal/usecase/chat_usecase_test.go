package usecase

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/event"
	"agrolink/pkg/errors"
)

type fakeChatRepo struct {
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
	}
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func (r *fakeChatRepo) ResolveConversation(ctx context.Context, userA, userB string) (*entity.Conversation, bool, error) {
	key := pairKey(userA, userB)
	if conv, ok := r.conversations[key]; ok {
		return conv, false, nil
	}
	now := time.Now()
	conv := &entity.Conversation{
		ID:           key,
		Participants: []string{userA, userB},
		UnreadCount:  map[string]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.conversations[key] = conv
	return conv, true, nil
}

func (r *fakeChatRepo) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	conv, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return conv, nil
}

func (r *fakeChatRepo) FindConversation(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	return r.GetConversation(ctx, pairKey(userA, userB))
}

func (r *fakeChatRepo) ListConversations(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	var result []*entity.Conversation
	for _, conv := range r.conversations {
		if conv.HasParticipant(userID) {
			result = append(result, conv)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *fakeChatRepo) AppendMessage(ctx context.Context, message *entity.Message) error {
	conv, ok := r.conversations[message.ConversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	if message.ID == "" {
		message.ID = fmt.Sprintf("msg-%d", len(r.messages[conv.ID])+1)
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.messages[conv.ID] = append(r.messages[conv.ID], message)
	conv.LastMessage = message.Summary()
	conv.UpdatedAt = message.CreatedAt
	conv.UnreadCount[message.RecipientID]++
	return nil
}

func (r *fakeChatRepo) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	all := r.messages[conversationID]
	total := int64(len(all))
	if offset >= len(all) {
		return []*entity.Message{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *fakeChatRepo) MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error) {
	conv, ok := r.conversations[conversationID]
	if !ok {
		return 0, errors.NotFound("Conversation", nil)
	}
	var flipped int64
	for _, msg := range r.messages[conversationID] {
		if msg.RecipientID == userID && !msg.IsRead {
			msg.IsRead = true
			flipped++
		}
	}
	conv.UnreadCount[userID] = 0
	return flipped, nil
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

type fakeListingRepo struct {
	listings map[string]*entity.Listing
}

func (r *fakeListingRepo) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	listing, ok := r.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	return listing, nil
}

type publishedEvent struct {
	topic   string
	payload interface{}
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) Publish(topic string, payload interface{}) error {
	p.events = append(p.events, publishedEvent{topic: topic, payload: payload})
	return nil
}

func (p *fakePublisher) byTopic(topic string) []publishedEvent {
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

func newTestUseCase() (*ChatUseCase, *fakeChatRepo, *fakePublisher) {
	chatRepo := newFakeChatRepo()
	userRepo := &fakeUserRepo{users: map[string]*entity.User{
		"farmer-a": {ID: "farmer-a", Name: "Asep", Role: entity.RoleFarmer},
		"buyer-b":  {ID: "buyer-b", Name: "Budi", Role: entity.RoleBuyer},
	}}
	listingRepo := &fakeListingRepo{listings: map[string]*entity.Listing{
		"listing-1": {ID: "listing-1", FarmerID: "farmer-a", CropName: "Tomato", Unit: "kg", PricePerUnit: 20},
	}}
	publisher := &fakePublisher{}

	uc := NewChatUseCase(chatRepo, userRepo, listingRepo, publisher, nil)
	return uc, chatRepo, publisher
}

func TestSendMessageCreatesConversationAndUnread(t *testing.T) {
	uc, chatRepo, publisher := newTestUseCase()
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{
		RecipientID: "buyer-b",
		Content:     "Interested in your tomatoes?",
	})
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
	assert.Equal(t, "Asep", msg.SenderName)
	assert.Equal(t, entity.RoleFarmer, msg.SenderRole)

	require.Len(t, chatRepo.conversations, 1)
	conv := chatRepo.conversations[pairKey("farmer-a", "buyer-b")]
	require.NotNil(t, conv)
	assert.ElementsMatch(t, []string{"farmer-a", "buyer-b"}, conv.Participants)
	assert.Equal(t, 1, conv.UnreadFor("buyer-b"))
	assert.Equal(t, 0, conv.UnreadFor("farmer-a"))

	sent := publisher.byTopic(event.TopicMessageSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "buyer-b", sent[0].payload.(event.MessageSent).RecipientID)

	updated := publisher.byTopic(event.TopicConversationUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, 1, updated[0].payload.(event.ConversationUpdated).UnreadCount)
}

func TestSendMessageUnreadAccumulates(t *testing.T) {
	uc, chatRepo, _ := newTestUseCase()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{
			RecipientID: "buyer-b",
			Content:     fmt.Sprintf("message %d", i+1),
		})
		require.NoError(t, err)
	}

	conv := chatRepo.conversations[pairKey("farmer-a", "buyer-b")]
	assert.Equal(t, 3, conv.UnreadFor("buyer-b"))
	assert.Equal(t, "message 3", conv.LastMessage.Content)
}

func TestSendMessageRejectsSelfAndEmpty(t *testing.T) {
	uc, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{RecipientID: "farmer-a", Content: "hi"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = uc.SendMessage(ctx, "farmer-a", SendMessageInput{RecipientID: "buyer-b"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestSendMessageUnknownRecipient(t *testing.T) {
	uc, chatRepo, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{RecipientID: "nobody", Content: "hello"})
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	assert.Empty(t, chatRepo.conversations)
}

func TestGetHistoryAcknowledgesUnread(t *testing.T) {
	uc, chatRepo, publisher := newTestUseCase()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{
			RecipientID: "buyer-b",
			Content:     fmt.Sprintf("message %d", i+1),
		})
		require.NoError(t, err)
	}

	messages, total, err := uc.GetHistoryAndAcknowledge(ctx, "buyer-b", "farmer-a", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, messages, 3)
	assert.Equal(t, "message 1", messages[0].Content)
	assert.Equal(t, "Asep", messages[0].SenderName)

	conv := chatRepo.conversations[pairKey("farmer-a", "buyer-b")]
	assert.Equal(t, 0, conv.UnreadFor("buyer-b"))
	for _, msg := range chatRepo.messages[conv.ID] {
		assert.True(t, msg.IsRead)
	}

	read := publisher.byTopic(event.TopicMessagesRead)
	require.Len(t, read, 1)
	payload := read[0].payload.(event.MessagesRead)
	assert.Equal(t, "farmer-a", payload.RecipientID)
	assert.Equal(t, "buyer-b", payload.ReadBy)
}

func TestGetHistoryNoConversationIsEmpty(t *testing.T) {
	uc, _, publisher := newTestUseCase()

	messages, total, err := uc.GetHistoryAndAcknowledge(context.Background(), "buyer-b", "farmer-a", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Zero(t, total)
	assert.Empty(t, publisher.events)
}

func TestGetHistorySkipsReadEventWhenNothingFlipped(t *testing.T) {
	uc, _, publisher := newTestUseCase()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{RecipientID: "buyer-b", Content: "hi"})
	require.NoError(t, err)

	_, _, err = uc.GetHistoryAndAcknowledge(ctx, "buyer-b", "farmer-a", 50, 0)
	require.NoError(t, err)
	require.Len(t, publisher.byTopic(event.TopicMessagesRead), 1)

	// Second view flips nothing, so no second read event.
	_, _, err = uc.GetHistoryAndAcknowledge(ctx, "buyer-b", "farmer-a", 50, 0)
	require.NoError(t, err)
	assert.Len(t, publisher.byTopic(event.TopicMessagesRead), 1)
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	uc, chatRepo, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{RecipientID: "buyer-b", Content: "hi"})
	require.NoError(t, err)

	conv := chatRepo.conversations[pairKey("farmer-a", "buyer-b")]

	require.NoError(t, uc.MarkAsRead(ctx, "buyer-b", conv.ID))
	require.NoError(t, uc.MarkAsRead(ctx, "buyer-b", conv.ID))
	assert.Equal(t, 0, conv.UnreadFor("buyer-b"))
}

func TestMarkAsReadRejectsNonParticipant(t *testing.T) {
	uc, chatRepo, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{RecipientID: "buyer-b", Content: "hi"})
	require.NoError(t, err)

	conv := chatRepo.conversations[pairKey("farmer-a", "buyer-b")]
	err = uc.MarkAsRead(ctx, "intruder", conv.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestQuotationDefaultsAndRoundTrip(t *testing.T) {
	uc, chatRepo, _ := newTestUseCase()
	ctx := context.Background()

	msg, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{
		RecipientID: "buyer-b",
		Quotation: &QuotationInput{
			CropName:     "Tomato",
			Quantity:     50,
			Unit:         "kg",
			PricePerUnit: 20,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Quotation request for Tomato", msg.Content)
	require.NotNil(t, msg.Quotation)
	assert.Equal(t, entity.QuotationPending, msg.Quotation.Status)
	// Total is carried as submitted, never derived.
	assert.Zero(t, msg.Quotation.Total)

	conv := chatRepo.conversations[pairKey("farmer-a", "buyer-b")]
	stored := chatRepo.messages[conv.ID][0]
	assert.Equal(t, "Tomato", stored.Quotation.CropName)
	assert.Equal(t, 50, stored.Quotation.Quantity)
	assert.Equal(t, "kg", stored.Quotation.Unit)
	assert.True(t, conv.LastMessage.HasQuote)
}

func TestQuotationNotesBecomeContent(t *testing.T) {
	uc, _, _ := newTestUseCase()

	msg, err := uc.SendMessage(context.Background(), "buyer-b", SendMessageInput{
		RecipientID: "farmer-a",
		Quotation: &QuotationInput{
			CropName: "Chili",
			Quantity: 10,
			Unit:     "kg",
			Notes:    "Need delivery by Friday",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Need delivery by Friday", msg.Content)
}

func TestQuotationListingPrefill(t *testing.T) {
	uc, _, _ := newTestUseCase()

	msg, err := uc.SendMessage(context.Background(), "buyer-b", SendMessageInput{
		RecipientID: "farmer-a",
		Quotation: &QuotationInput{
			ListingID: "listing-1",
			Quantity:  25,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Quotation)
	assert.Equal(t, "Tomato", msg.Quotation.CropName)
	assert.Equal(t, "kg", msg.Quotation.Unit)
	assert.Equal(t, float64(20), msg.Quotation.PricePerUnit)
}

func TestQuotationValidation(t *testing.T) {
	uc, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "buyer-b", SendMessageInput{
		RecipientID: "farmer-a",
		Quotation:   &QuotationInput{Quantity: 5, Unit: "kg"},
	})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = uc.SendMessage(ctx, "buyer-b", SendMessageInput{
		RecipientID: "farmer-a",
		Quotation:   &QuotationInput{CropName: "Chili", Quantity: 0, Unit: "kg"},
	})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestListConversationsAnnotatesOtherUser(t *testing.T) {
	uc, _, _ := newTestUseCase()
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{RecipientID: "buyer-b", Content: "hi"})
	require.NoError(t, err)

	entries, err := uc.ListConversations(ctx, "buyer-b")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, 1, entry.UnreadCount)
	require.NotNil(t, entry.OtherUser)
	assert.Equal(t, "farmer-a", entry.OtherUser.ID)
	assert.Equal(t, "Asep", entry.OtherUser.Name)
	require.NotNil(t, entry.LastMessage)
	assert.Equal(t, "hi", entry.LastMessage.Content)
}

func TestOfflineRecipientStillAccumulates(t *testing.T) {
	// No publisher and no presence wired: pushes have nowhere to go,
	// sends must still succeed and the ledger must stay correct.
	chatRepo := newFakeChatRepo()
	userRepo := &fakeUserRepo{users: map[string]*entity.User{
		"farmer-a": {ID: "farmer-a", Name: "Asep", Role: entity.RoleFarmer},
		"buyer-b":  {ID: "buyer-b", Name: "Budi", Role: entity.RoleBuyer},
	}}
	uc := NewChatUseCase(chatRepo, userRepo, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := uc.SendMessage(ctx, "farmer-a", SendMessageInput{
			RecipientID: "buyer-b",
			Content:     fmt.Sprintf("message %d", i+1),
		})
		require.NoError(t, err)
	}

	entries, err := uc.ListConversations(ctx, "buyer-b")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].UnreadCount)
	assert.Equal(t, "message 3", entries[0].LastMessage.Content)
}
