package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// LobbyManager pushes the room list to lobby sockets.
type LobbyManager struct {
	clients map[string]*LobbyClient
	mu      sync.RWMutex
}

type LobbyClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func NewLobbyManager() *LobbyManager {
	return &LobbyManager{
		clients: make(map[string]*LobbyClient),
	}
}

// HandleConnection registers conn and blocks until it closes.
func (lm *LobbyManager) HandleConnection(conn *websocket.Conn) {
	client := &LobbyClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	lm.mu.Lock()
	lm.clients[client.id] = client
	lm.mu.Unlock()

	go client.writePump()
	client.readPump(lm)
}

// BroadcastUpdate sends the current room list to every lobby socket.
func (lm *LobbyManager) BroadcastUpdate(rooms any) {
	data, err := json.Marshal(OutgoingMessage{Type: TypeRoomsUpdate, Payload: rooms})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal lobby update")
		return
	}

	lm.mu.RLock()
	defer lm.mu.RUnlock()

	for _, client := range lm.clients {
		select {
		case client.send <- data:
		default:
			log.Warn().Str("client_id", client.id).Msg("lobby client buffer full")
		}
	}
}

func (lm *LobbyManager) ClientCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.clients)
}

// Close disconnects every lobby socket.
func (lm *LobbyManager) Close() {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	for _, client := range lm.clients {
		client.conn.Close()
	}
}

func (c *LobbyClient) readPump(lm *LobbyManager) {
	defer func() {
		lm.removeClient(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("lobby websocket error")
			}
			return
		}
		// inbound lobby messages are ignored
	}
}

func (c *LobbyClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (lm *LobbyManager) removeClient(id string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if client, ok := lm.clients[id]; ok {
		close(client.send)
		delete(lm.clients, id)
	}
}
