package game

import (
	"context"

	"agenci/store"

	"github.com/stretchr/testify/mock"
)

// --- store.Store ---

type MockStore struct {
	mock.Mock
}

var _ store.Store = (*MockStore)(nil)

func (m *MockStore) CreateRoom(ctx context.Context, seeds []store.FieldSeed) (*store.Room, error) {
	args := m.Called(ctx, seeds)
	room, _ := args.Get(0).(*store.Room)
	return room, args.Error(1)
}

func (m *MockStore) InsertFields(ctx context.Context, roomID int64, seeds []store.FieldSeed) error {
	args := m.Called(ctx, roomID, seeds)
	return args.Error(0)
}

func (m *MockStore) GetRoom(ctx context.Context, roomID int64) (*store.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*store.Room)
	return room, args.Error(1)
}

func (m *MockStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]*store.Room)
	return rooms, args.Error(1)
}

func (m *MockStore) SetRoomStage(ctx context.Context, roomID int64, stage string) error {
	args := m.Called(ctx, roomID, stage)
	return args.Error(0)
}

func (m *MockStore) SetRoomCurrentTeam(ctx context.Context, roomID int64, team string) error {
	args := m.Called(ctx, roomID, team)
	return args.Error(0)
}

func (m *MockStore) GetField(ctx context.Context, fieldID int64) (*store.Field, error) {
	args := m.Called(ctx, fieldID)
	field, _ := args.Get(0).(*store.Field)
	return field, args.Error(1)
}

func (m *MockStore) GetFields(ctx context.Context, roomID int64) ([]*store.Field, error) {
	args := m.Called(ctx, roomID)
	fields, _ := args.Get(0).([]*store.Field)
	return fields, args.Error(1)
}

func (m *MockStore) MarkFieldUsed(ctx context.Context, fieldID int64) (bool, error) {
	args := m.Called(ctx, fieldID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CreatePlayer(ctx context.Context, roomID int64, username, team, role string) (*store.Player, error) {
	args := m.Called(ctx, roomID, username, team, role)
	p, _ := args.Get(0).(*store.Player)
	return p, args.Error(1)
}

func (m *MockStore) GetPlayer(ctx context.Context, playerID int64) (*store.Player, error) {
	args := m.Called(ctx, playerID)
	p, _ := args.Get(0).(*store.Player)
	return p, args.Error(1)
}

func (m *MockStore) GetPlayers(ctx context.Context, roomID int64) ([]*store.Player, error) {
	args := m.Called(ctx, roomID)
	ps, _ := args.Get(0).([]*store.Player)
	return ps, args.Error(1)
}

func (m *MockStore) RecordEvent(ctx context.Context, event *store.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStore) ListEvents(ctx context.Context, roomID int64) ([]*store.Event, error) {
	args := m.Called(ctx, roomID)
	evs, _ := args.Get(0).([]*store.Event)
	return evs, args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}
