package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"agenci/game"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 256
)

// Manager owns room subscriptions for every connected socket and fans room
// events out to them.
type Manager struct {
	rooms   map[int64]*Room
	clients map[*Client]bool
	engine  *game.Engine
	mu      sync.RWMutex
}

func NewManager(engine *game.Engine) *Manager {
	return &Manager{
		rooms:   make(map[int64]*Room),
		clients: make(map[*Client]bool),
		engine:  engine,
	}
}

// Room returns the subscription set for roomID, or nil when nobody is
// subscribed.
func (m *Manager) Room(roomID int64) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// HandleConnection registers conn and starts its pumps. The socket is not
// subscribed anywhere until it sends join-room.
func (m *Manager) HandleConnection(conn *websocket.Conn) {
	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	m.mu.Lock()
	m.clients[client] = true
	m.mu.Unlock()

	log.Debug().Str("client_id", client.id).Msg("socket connected")

	go m.writePump(client)
	go m.readPump(client)
}

// BroadcastEvent sends ev to the room's sockets except those bound to the
// acting player.
func (m *Manager) BroadcastEvent(ev *game.Event) {
	if ev == nil {
		return
	}
	room := m.Room(ev.RoomID)
	if room == nil {
		return
	}
	room.Broadcast(eventMessage(ev), func(c *Client) bool {
		if ev.PlayerID == 0 {
			return false
		}
		_, playerID := c.binding()
		return playerID == ev.PlayerID
	})
}

func (m *Manager) broadcastFrom(sender *Client, ev *game.Event) {
	if ev == nil {
		return
	}
	room := m.Room(ev.RoomID)
	if room == nil {
		return
	}
	room.Broadcast(eventMessage(ev), func(c *Client) bool {
		return c == sender
	})
}

// subscribe moves client into roomID, leaving any previous room.
func (m *Manager) subscribe(client *Client, roomID, playerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaveLocked(client)

	room, ok := m.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		m.rooms[roomID] = room
	}
	room.AddClient(client)
	client.bind(roomID, playerID)
}

func (m *Manager) leave(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(client)
}

func (m *Manager) leaveLocked(client *Client) {
	roomID, _ := client.binding()
	if roomID == 0 {
		return
	}
	if room, ok := m.rooms[roomID]; ok {
		if room.RemoveClient(client) == 0 {
			delete(m.rooms, roomID)
		}
	}
	client.bind(0, 0)
}

func (m *Manager) unregister(client *Client) {
	m.mu.Lock()
	m.leaveLocked(client)
	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.send)
	}
	m.mu.Unlock()

	log.Debug().Str("client_id", client.id).Msg("socket disconnected")
}

// Close disconnects every socket; their pumps unregister them.
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for client := range m.clients {
		client.conn.Close()
	}
}

func (m *Manager) readPump(client *Client) {
	defer func() {
		m.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", client.id).Msg("websocket error")
			}
			break
		}

		var inMsg IncomingMessage
		if err := json.Unmarshal(message, &inMsg); err != nil {
			m.sendError(client, "malformed message")
			continue
		}

		m.handleMessage(context.Background(), client, &inMsg)
	}
}

func (m *Manager) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleMessage(ctx context.Context, client *Client, msg *IncomingMessage) {
	switch msg.Type {
	case TypeJoinRoom:
		var p JoinRoomPayload
		if err := decodePayload(msg.Payload, &p); err != nil || p.RoomID == 0 {
			m.sendError(client, "join-room requires a roomId")
			return
		}
		result, ev, err := m.engine.JoinRoom(ctx, game.JoinRequest{
			RoomID:   p.RoomID,
			Username: p.Username,
			Team:     p.Team,
			Role:     p.Role,
			PlayerID: p.PlayerID,
		})
		if err != nil {
			m.sendFailure(client, err)
			return
		}

		m.subscribe(client, p.RoomID, result.Player.ID)
		log.Info().
			Str("client_id", client.id).
			Int64("room_id", p.RoomID).
			Int64("player_id", result.Player.ID).
			Msg("socket joined room")

		m.send(client, OutgoingMessage{
			Type:    TypeJoined,
			Payload: JoinedPayload{Player: result.Player, Resumed: result.Resumed},
		})
		m.broadcastFrom(client, ev)

	case TypeRevealField:
		var p RevealFieldPayload
		if err := decodePayload(msg.Payload, &p); err != nil || p.FieldID == 0 {
			m.sendError(client, "reveal-field requires a fieldId")
			return
		}
		_, playerID := client.binding()
		if playerID == 0 {
			m.sendError(client, "join a room first")
			return
		}

		result, ev, err := m.engine.RevealField(ctx, playerID, p.FieldID)
		if err != nil {
			m.sendFailure(client, err)
			return
		}

		m.send(client, OutgoingMessage{
			Type:    TypeRevealed,
			Payload: RevealedPayload{FieldID: p.FieldID, Changed: result.Changed},
		})
		m.broadcastFrom(client, ev)

	case TypeLeaveRoom:
		m.leave(client)

	default:
		log.Debug().Str("client_id", client.id).Str("type", msg.Type).Msg("unknown message type")
		m.sendError(client, "unknown message type")
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, v)
}

// sendFailure reports err to the client, hiding storage details.
func (m *Manager) sendFailure(client *Client, err error) {
	msg := err.Error()
	if errors.Is(err, game.ErrStorage) {
		log.Error().Err(err).Str("client_id", client.id).Msg("socket action failed")
		msg = "internal error"
	}
	m.sendError(client, msg)
}

func (m *Manager) sendError(client *Client, message string) {
	m.send(client, OutgoingMessage{Type: TypeError, Payload: ErrorPayload{Message: message}})
}

func (m *Manager) send(client *Client, msg OutgoingMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}
	select {
	case client.send <- data:
	default:
		log.Warn().Str("client_id", client.id).Msg("client send buffer full, dropping message")
	}
}
