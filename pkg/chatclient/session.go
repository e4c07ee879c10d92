package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff       = time.Second
	maxBackoff           = 30 * time.Second
	maxReconnectAttempts = 10
)

// ErrReconnectExhausted is returned when the session gives up redialing.
var ErrReconnectExhausted = errors.New("chatclient: reconnect attempts exhausted")

// Thread is the one thread the session may hold open: the counterpart's
// id plus the accumulated message list.
type Thread struct {
	RecipientID    string
	ConversationID string
	Messages       []*Message
}

// Session maintains a live view of the caller's chat state: the inbox
// and at most one open thread, reconciled against server pushes. REST
// fetches are authoritative; socket frames only patch the local copy.
type Session struct {
	client *Client
	userID string
	wsURL  string
	token  string

	mu         sync.Mutex
	inbox      []*InboxEntry
	openThread *Thread

	// OnUpdate, when set, fires after any state change.
	OnUpdate func()
}

func NewSession(client *Client, userID, wsURL, token string) *Session {
	return &Session{
		client: client,
		userID: userID,
		wsURL:  wsURL,
		token:  token,
	}
}

// Run dials the gateway and processes pushes until ctx ends or the
// reconnect budget is spent. The initial inbox is fetched before the
// first dial so the session starts from authoritative state.
func (s *Session) Run(ctx context.Context) error {
	if err := s.RefreshInbox(ctx); err != nil {
		return fmt.Errorf("initial inbox fetch: %w", err)
	}

	backoff := initialBackoff
	attempts := 0

	for {
		start := time.Now()
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that held for a while counts as recovery, so
		// the retry budget starts over.
		if time.Since(start) > maxBackoff {
			backoff = initialBackoff
			attempts = 0
		}

		attempts++
		if attempts >= maxReconnectAttempts {
			return fmt.Errorf("%w: last error: %v", ErrReconnectExhausted, err)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Session) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL+"?token="+s.token, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	join, _ := json.Marshal(map[string]string{"user_id": s.userID})
	if err := conn.WriteJSON(frame{Event: eventJoinRoom, Data: join}); err != nil {
		return err
	}

	// Socket state may be stale after a gap in connectivity.
	if err := s.RefreshInbox(ctx); err != nil {
		return err
	}

	// Keepalive pings also re-arm the server's presence TTL. This
	// goroutine is the connection's only writer after the join frame.
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteJSON(frame{Event: eventPing}); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		s.handleFrame(ctx, f)
	}
}

// RefreshInbox replaces the local inbox with the server's view.
func (s *Session) RefreshInbox(ctx context.Context) error {
	entries, err := s.client.ListConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.inbox = entries
	s.mu.Unlock()

	s.notify()
	return nil
}

// OpenThread makes otherUserID's thread the open one. History comes from
// a REST fetch rather than accumulated socket state, and viewing it
// clears the unread count server-side, so the local badge resets too.
func (s *Session) OpenThread(ctx context.Context, otherUserID string, limit, offset int) ([]*Message, error) {
	messages, err := s.client.GetHistory(ctx, otherUserID, limit, offset)
	if err != nil {
		return nil, err
	}

	conversationID := ""
	if len(messages) > 0 {
		conversationID = messages[0].ConversationID
	}

	s.mu.Lock()
	s.openThread = &Thread{
		RecipientID:    otherUserID,
		ConversationID: conversationID,
		Messages:       messages,
	}
	if conversationID != "" {
		for _, entry := range s.inbox {
			if entry.ConversationID == conversationID {
				entry.UnreadCount = 0
				break
			}
		}
	}
	s.mu.Unlock()

	s.notify()
	return messages, nil
}

// CloseThread drops the open thread, leaving only the inbox.
func (s *Session) CloseThread() {
	s.mu.Lock()
	s.openThread = nil
	s.mu.Unlock()
}

// Inbox returns a snapshot of the conversation list.
func (s *Session) Inbox() []*InboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*InboxEntry, len(s.inbox))
	copy(snapshot, s.inbox)
	return snapshot
}

// OpenThreadMessages returns a snapshot of the open thread, or nil when
// no thread is open.
func (s *Session) OpenThreadMessages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openThread == nil {
		return nil
	}
	snapshot := make([]*Message, len(s.openThread.Messages))
	copy(snapshot, s.openThread.Messages)
	return snapshot
}

func (s *Session) handleFrame(ctx context.Context, f frame) {
	switch f.Event {
	case eventReceiveMessage:
		var data receiveMessageData
		if err := json.Unmarshal(f.Data, &data); err != nil || data.Message == nil {
			return
		}
		appendedTo, known := s.applyReceiveMessage(data.Message)
		if appendedTo != "" {
			// The message landed in the open thread, acknowledge it
			// right away so the sender sees the receipt.
			_ = s.client.MarkAsRead(ctx, appendedTo)
		} else if !known {
			_ = s.RefreshInbox(ctx)
		}

	case eventConversationUpdated:
		var data conversationUpdatedData
		if err := json.Unmarshal(f.Data, &data); err != nil || data.ConversationID == "" {
			return
		}
		if !s.applyConversationUpdated(&data) {
			_ = s.RefreshInbox(ctx)
		}

	case eventMessagesRead:
		var data messagesReadData
		if err := json.Unmarshal(f.Data, &data); err != nil || data.ConversationID == "" {
			return
		}
		s.applyMessagesRead(&data)
	}
}

// applyReceiveMessage folds an incoming message into local state. It
// returns the conversation id when the message was appended to the open
// thread (so the caller can acknowledge it), and whether the
// conversation was already known to the inbox.
func (s *Session) applyReceiveMessage(msg *Message) (appendedTo string, known bool) {
	s.mu.Lock()

	if s.openThread != nil && msg.SenderID == s.openThread.RecipientID {
		if s.openThread.ConversationID == "" {
			s.openThread.ConversationID = msg.ConversationID
		}
		s.openThread.Messages = append(s.openThread.Messages, msg)
		s.mu.Unlock()
		s.notify()
		return msg.ConversationID, true
	}

	for _, entry := range s.inbox {
		if entry.ConversationID == msg.ConversationID {
			entry.UnreadCount++
			s.mu.Unlock()
			s.notify()
			return "", true
		}
	}
	s.mu.Unlock()

	// First message of a brand-new conversation; the inbox must be
	// refetched to learn it.
	return "", false
}

// applyConversationUpdated patches the matching inbox entry and moves it
// to the top. It reports false when the conversation is unknown locally.
func (s *Session) applyConversationUpdated(data *conversationUpdatedData) bool {
	s.mu.Lock()

	for i, entry := range s.inbox {
		if entry.ConversationID != data.ConversationID {
			continue
		}
		entry.LastMessage = data.LastMessage
		entry.UnreadCount = data.UnreadCount
		if data.LastMessage != nil {
			entry.UpdatedAt = data.LastMessage.CreatedAt
		}

		copy(s.inbox[1:i+1], s.inbox[:i])
		s.inbox[0] = entry

		s.mu.Unlock()
		s.notify()
		return true
	}
	s.mu.Unlock()
	return false
}

// applyMessagesRead flips local read receipts on the caller's own
// messages in the matching conversation.
func (s *Session) applyMessagesRead(data *messagesReadData) {
	s.mu.Lock()

	if s.openThread == nil || s.openThread.ConversationID != data.ConversationID {
		s.mu.Unlock()
		return
	}

	for _, msg := range s.openThread.Messages {
		if msg.SenderID == s.userID && msg.RecipientID == data.ReadBy {
			msg.IsRead = true
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.OnUpdate != nil {
		s.OnUpdate()
	}
}
