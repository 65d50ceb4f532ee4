package ws

import (
	"encoding/json"

	"agenci/game"
)

// Socket message types.
const (
	TypeJoinRoom    = "join-room"
	TypeRevealField = "reveal-field"
	TypeLeaveRoom   = "leave-room"

	TypeJoined      = "joined"
	TypeRevealed    = "revealed"
	TypeError       = "error"
	TypeRoomsUpdate = "rooms-update"
)

type IncomingMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type OutgoingMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type JoinRoomPayload struct {
	RoomID   int64  `json:"roomId"`
	Username string `json:"username"`
	Team     string `json:"team,omitempty"`
	Role     string `json:"role,omitempty"`
	PlayerID int64  `json:"playerId,omitempty"`
}

type RevealFieldPayload struct {
	FieldID int64 `json:"fieldId"`
}

type JoinedPayload struct {
	Player  *game.Player `json:"player"`
	Resumed bool         `json:"resumed"`
}

type RevealedPayload struct {
	FieldID int64 `json:"fieldId"`
	Changed bool  `json:"changed"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func eventMessage(ev *game.Event) OutgoingMessage {
	return OutgoingMessage{Type: ev.Type, Payload: ev.Payload}
}
