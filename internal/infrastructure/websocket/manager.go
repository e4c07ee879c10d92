package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"agrolink/pkg/logger"
)

// PresenceTracker records which users currently hold a joined connection.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
}

// Client is one authenticated socket connection.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Manager owns every active connection and the per-user rooms. A client
// is registered on connect but receives pushes only after announcing
// itself with a join_room frame for its own identity.
type Manager struct {
	clients    map[string]*Client
	rooms      map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	presence   PresenceTracker
	mutex      sync.RWMutex
}

func NewManager(presence PresenceTracker) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		presence:   presence,
	}
}

// Start runs the manager's main loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				logger.Info("WebSocket: client connected: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				current, ok := m.clients[client.UserID]
				isCurrent := ok && current == client
				if isCurrent {
					delete(m.clients, client.UserID)
				}
				if m.rooms[client.UserID] == client {
					delete(m.rooms, client.UserID)
				}
				// Close the Send channel even for a superseded
				// connection, its WritePump is parked on it.
				close(client.Send)
				m.mutex.Unlock()

				// A replaced connection must not flag the user offline:
				// the replacement is still live.
				if isCurrent && m.presence != nil {
					if err := m.presence.MarkOffline(ctx, client.UserID); err != nil {
						logger.Warn("WebSocket: failed to mark %s offline: %v", client.UserID, err)
					}
				}
				logger.Info("WebSocket: client disconnected: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// JoinRoom enrolls the client into its own room. Announcing any other
// identity is rejected.
func (m *Manager) JoinRoom(ctx context.Context, client *Client, userID string) bool {
	if userID != client.UserID {
		logger.Warn("WebSocket: client %s attempted to join room %s", client.UserID, userID)
		return false
	}

	m.mutex.Lock()
	m.rooms[client.UserID] = client
	m.mutex.Unlock()

	if m.presence != nil {
		if err := m.presence.MarkOnline(ctx, client.UserID); err != nil {
			logger.Warn("WebSocket: failed to mark %s online: %v", client.UserID, err)
		}
	}
	logger.Info("WebSocket: client %s joined own room", client.UserID)
	return true
}

// refreshPresence re-arms the presence TTL for a joined client, so pings
// keep the online flag alive.
func (m *Manager) refreshPresence(ctx context.Context, c *Client) {
	m.mutex.RLock()
	joined := m.rooms[c.UserID] == c
	m.mutex.RUnlock()

	if joined && m.presence != nil {
		if err := m.presence.MarkOnline(ctx, c.UserID); err != nil {
			logger.Warn("WebSocket: failed to refresh presence for %s: %v", c.UserID, err)
		}
	}
}

// SendToUser pushes a frame to userID's room. Delivery is best-effort:
// an absent room or a full send buffer drops the frame silently, the
// durable state is already correct and the user catches up on next fetch.
func (m *Manager) SendToUser(userID string, frame []byte) {
	if frame == nil {
		return
	}

	// The send stays under the read lock: channel close happens under
	// the write lock, so a frame can never land on a closed channel.
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	client, ok := m.rooms[userID]
	if !ok {
		return
	}

	select {
	case client.Send <- frame:
	default:
		logger.Warn("WebSocket: dropping frame for %s, send buffer full", userID)
	}
}

// ReadPump consumes inbound frames until the connection dies. Only room
// announcements and pings are honored; anything else is answered with an
// error frame and ignored.
func (c *Client) ReadPump(ctx context.Context, m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error from %s: %v", c.UserID, err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			m.SendToUser(c.UserID, NewFrame(EventError, map[string]string{"error": "invalid frame"}))
			continue
		}

		switch frame.Event {
		case EventJoinRoom:
			var join JoinRoomData
			if err := json.Unmarshal(frame.Data, &join); err != nil || join.UserID == "" {
				join.UserID = c.UserID // bare join_room announces self
			}
			if !m.JoinRoom(ctx, c, join.UserID) {
				c.trySend(NewFrame(EventError, map[string]string{"error": "cannot join another user's room"}))
			}

		case EventPing:
			m.refreshPresence(ctx, c)
			c.trySend(NewFrame(EventPong, map[string]string{"status": "alive"}))

		default:
			logger.Debug("WebSocket: ignoring inbound event %q from %s", frame.Event, c.UserID)
			c.trySend(NewFrame(EventError, map[string]string{"error": "unsupported event"}))
		}
	}
}

// WritePump drains the send channel onto the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		frame, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logger.Warn("WebSocket: write error to %s: %v", c.UserID, err)
			return
		}
	}
}

func (c *Client) trySend(frame []byte) {
	if frame == nil {
		return
	}
	select {
	case c.Send <- frame:
	default:
	}
}
