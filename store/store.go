package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Store is the persistence contract the game engine works against. Enum
// columns (stage, team, role) are carried as their persisted strings and
// decoded by the caller.
type Store interface {
	// CreateRoom inserts a room together with its board in one transaction.
	CreateRoom(ctx context.Context, seeds []FieldSeed) (*Room, error)
	InsertFields(ctx context.Context, roomID int64, seeds []FieldSeed) error
	GetRoom(ctx context.Context, roomID int64) (*Room, error)
	ListRooms(ctx context.Context) ([]*Room, error)
	SetRoomStage(ctx context.Context, roomID int64, stage string) error
	SetRoomCurrentTeam(ctx context.Context, roomID int64, team string) error

	GetField(ctx context.Context, fieldID int64) (*Field, error)
	GetFields(ctx context.Context, roomID int64) ([]*Field, error)
	// MarkFieldUsed reports whether this call flipped the field to used.
	MarkFieldUsed(ctx context.Context, fieldID int64) (bool, error)

	CreatePlayer(ctx context.Context, roomID int64, username, team, role string) (*Player, error)
	GetPlayer(ctx context.Context, playerID int64) (*Player, error)
	GetPlayers(ctx context.Context, roomID int64) ([]*Player, error)

	RecordEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, roomID int64) ([]*Event, error)

	Close() error
}

type Room struct {
	ID          int64
	Stage       string
	CurrentTeam string
	CreatedAt   time.Time
}

type Field struct {
	ID        int64
	RoomID    int64
	Team      string
	Text      string
	IsUsed    bool
	CreatedAt time.Time
}

type FieldSeed struct {
	Text string
	Team string
}

type Player struct {
	ID        int64
	RoomID    int64
	Username  string
	Team      string
	Role      string
	CreatedAt time.Time
}

type Event struct {
	ID        int64
	RoomID    int64
	PlayerID  *int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Defaults applied to new rooms.
const (
	InitialStage = "waiting_for_players"
	InitialTeam  = "red"
)
