package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client is one room socket. roomID and playerID record its current
// subscription and the player it acts as; both are zero until join-room.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	roomID   int64
	playerID int64
}

func (c *Client) binding() (roomID, playerID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.playerID
}

func (c *Client) bind(roomID, playerID int64) {
	c.mu.Lock()
	c.roomID = roomID
	c.playerID = playerID
	c.mu.Unlock()
}

// Room is the set of sockets subscribed to one game room.
type Room struct {
	roomID  int64
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewRoom(roomID int64) *Room {
	return &Room{
		roomID:  roomID,
		clients: make(map[*Client]bool),
	}
}

func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	r.clients[client] = true
	r.mu.Unlock()
}

// RemoveClient drops client and reports how many sockets remain.
func (r *Room) RemoveClient(client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, client)
	return len(r.clients)
}

// Broadcast enqueues message for every client that skip does not reject.
// Delivery is best effort: a full send buffer drops the message.
func (r *Room) Broadcast(message any, skip func(*Client) bool) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Int64("room_id", r.roomID).Msg("failed to marshal broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		if skip != nil && skip(client) {
			continue
		}
		select {
		case client.send <- data:
		default:
			log.Warn().
				Int64("room_id", r.roomID).
				Str("client_id", client.id).
				Msg("client send buffer full, dropping message")
		}
	}
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
