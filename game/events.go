package game

import (
	"context"
	"encoding/json"
	"time"

	"agenci/store"

	"github.com/rs/zerolog/log"
)

const (
	EventRoomCreated  = "room-created"
	EventPlayerJoined = "player-joined"
	EventFieldUpdated = "field-updated"
	EventRoomUpdated  = "room-updated"
)

// Event is a room-scoped notification. PlayerID names the acting player so
// fan-out can skip that player's own connections; zero means none.
type Event struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"roomId"`
	PlayerID int64  `json:"-"`
	Payload  any    `json:"payload"`
}

type PlayerJoinedPayload struct {
	Username string `json:"username"`
}

// FieldUpdatedPayload is intentionally empty; clients re-fetch the board.
type FieldUpdatedPayload struct{}

type RoomUpdatedPayload struct {
	Stage       Stage `json:"stage"`
	CurrentTeam Team  `json:"currentTeam"`
}

type RoomCreatedPayload struct {
	Fields int `json:"fields"`
}

// AuditEvent is a persisted event as read back from the log.
type AuditEvent struct {
	ID        int64           `json:"id"`
	RoomID    int64           `json:"roomId"`
	PlayerID  *int64          `json:"playerId,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// recordEvent appends ev to the audit log. Failures are logged, not returned:
// the state change the event describes has already been committed.
func recordEvent(ctx context.Context, st store.Store, ev *Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Msg("failed to marshal event payload")
		return
	}

	rec := &store.Event{
		RoomID:  ev.RoomID,
		Type:    ev.Type,
		Payload: payload,
	}
	if ev.PlayerID != 0 {
		id := ev.PlayerID
		rec.PlayerID = &id
	}

	if err := st.RecordEvent(ctx, rec); err != nil {
		log.Warn().Err(err).
			Int64("room_id", ev.RoomID).
			Str("event", ev.Type).
			Msg("failed to record event")
	}
}
