package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agrolink/internal/domain/entity"
	"agrolink/internal/domain/repository"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
)

const conversationsCollection = "conversations"

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{client: client}
}

// PairKey derives the canonical conversation document ID for an
// unordered pair of users. Keying the document by the pair is what
// enforces "at most one conversation per pair": concurrent creators
// collide on the same ID and the storage layer picks the winner.
func PairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s_%s", userA, userB)
}

func (r *firestoreChatRepository) ResolveConversation(ctx context.Context, userA, userB string) (*entity.Conversation, bool, error) {
	docRef := r.client.Collection(conversationsCollection).Doc(PairKey(userA, userB))

	doc, err := docRef.Get(ctx)
	if err == nil {
		return r.parseConversation(doc)
	}
	if status.Code(err) != codes.NotFound {
		return nil, false, errors.Internal("Failed to look up conversation", err)
	}

	now := time.Now()
	conv := &entity.Conversation{
		ID:           docRef.ID,
		Participants: []string{userA, userB},
		UnreadCount:  make(map[string]int),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := docRef.Create(ctx, conv); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			// Another resolver won the race; fetch the winner.
			doc, err := docRef.Get(ctx)
			if err != nil {
				return nil, false, errors.Internal("Failed to re-fetch conversation after create race", err)
			}
			existing, _, perr := r.parseConversation(doc)
			return existing, false, perr
		}
		return nil, false, errors.Internal("Failed to create conversation", err)
	}

	return conv, true, nil
}

func (r *firestoreChatRepository) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.client.Collection(conversationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", nil)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}
	conv, _, err := r.parseConversation(doc)
	return conv, err
}

func (r *firestoreChatRepository) FindConversation(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	return r.GetConversation(ctx, PairKey(userA, userB))
}

func (r *firestoreChatRepository) ListConversations(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	query := r.client.Collection(conversationsCollection).
		Where("participants", "array-contains", userID).
		OrderBy("updatedAt", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore: failed to fetch conversations for %s: %v", userID, err)
		return nil, errors.Internal("Failed to fetch conversations", err)
	}

	conversations := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		conv, _, err := r.parseConversation(doc)
		if err != nil {
			logger.Warn("Firestore: skipping malformed conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (r *firestoreChatRepository) AppendMessage(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	convRef := r.client.Collection(conversationsCollection).Doc(message.ConversationID)
	msgRef := convRef.Collection("messages").Doc(message.ID)

	// One atomic batch: the message document and the conversation
	// bookkeeping land together or not at all.
	batch := r.client.Batch()
	batch.Set(msgRef, message)
	batch.Update(convRef, []firestore.Update{
		{Path: "lastMessage", Value: message.Summary()},
		{Path: "updatedAt", Value: message.CreatedAt},
		{FieldPath: firestore.FieldPath{"unreadCount", message.RecipientID}, Value: firestore.Increment(1)},
	})

	if _, err := batch.Commit(ctx); err != nil {
		return errors.Internal("Failed to append message", err)
	}
	return nil
}

func (r *firestoreChatRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	base := r.client.Collection(conversationsCollection).Doc(conversationID).Collection("messages").
		OrderBy("createdAt", firestore.Asc)

	countDocs, err := base.Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}
	total := int64(len(countDocs))

	query := base
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreChatRepository) MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error) {
	convRef := r.client.Collection(conversationsCollection).Doc(conversationID)

	unreadDocs, err := convRef.Collection("messages").
		Where("recipientId", "==", userID).
		Where("isRead", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to query unread messages", err)
	}

	resetLedger := []firestore.Update{
		{FieldPath: firestore.FieldPath{"unreadCount", userID}, Value: 0},
	}

	if len(unreadDocs) == 0 {
		// Nothing unread; still pin the ledger key to zero so the call
		// stays idempotent even after a drifted counter.
		if _, err := convRef.Update(ctx, resetLedger); err != nil {
			return 0, errors.Internal("Failed to reset unread counter", err)
		}
		return 0, nil
	}

	// Firestore batches cap at 500 writes; flip messages in chunks and
	// reset the ledger key in the final one.
	const batchLimit = 499
	flipped := int64(0)
	for start := 0; start < len(unreadDocs); start += batchLimit {
		end := start + batchLimit
		if end > len(unreadDocs) {
			end = len(unreadDocs)
		}

		batch := r.client.Batch()
		for _, doc := range unreadDocs[start:end] {
			batch.Update(doc.Ref, []firestore.Update{{Path: "isRead", Value: true}})
			flipped++
		}
		if end == len(unreadDocs) {
			batch.Update(convRef, resetLedger)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return 0, errors.Internal("Failed to mark conversation read", err)
		}
	}

	return flipped, nil
}

func (r *firestoreChatRepository) parseConversation(doc *firestore.DocumentSnapshot) (*entity.Conversation, bool, error) {
	var conv entity.Conversation
	if err := doc.DataTo(&conv); err != nil {
		return nil, false, errors.Internal("Failed to parse conversation data", err)
	}
	conv.ID = doc.Ref.ID
	return &conv, false, nil
}
