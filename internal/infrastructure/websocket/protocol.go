package websocket

import (
	"encoding/json"
	"time"
)

// Server -> client event names. Every frame is addressed to a single
// user's room; the gateway never broadcasts.
const (
	EventReceiveMessage      = "receive_message"
	EventConversationUpdated = "conversation_updated"
	EventMessagesRead        = "messages_read"
	EventPong                = "pong"
	EventError               = "error"
)

// Client -> server event names. The socket is push-only for state: the
// only inbound frames are the room announcement and keepalives. There is
// deliberately no socket-originated send path; all mutations go through
// the REST operations.
const (
	EventJoinRoom = "join_room"
	EventPing     = "ping"
)

// Frame is the wire envelope for both directions.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type JoinRoomData struct {
	UserID string `json:"user_id"`
}

// NewFrame marshals data into an outbound frame. A payload that fails to
// marshal is a programming error; callers treat a nil return as "skip".
func NewFrame(event string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	frame, err := json.Marshal(Frame{
		Event:     event,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil
	}
	return frame
}
