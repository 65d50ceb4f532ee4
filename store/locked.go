package store

import (
	"context"
	"sync"
)

// LockedStore serialises access to another Store behind one readers-writer
// lock: reads share it, writes hold it exclusively for their whole duration.
type LockedStore struct {
	mu    sync.RWMutex
	inner Store
}

func NewLocked(inner Store) *LockedStore {
	return &LockedStore{inner: inner}
}

func (s *LockedStore) CreateRoom(ctx context.Context, seeds []FieldSeed) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.CreateRoom(ctx, seeds)
}

func (s *LockedStore) InsertFields(ctx context.Context, roomID int64, seeds []FieldSeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.InsertFields(ctx, roomID, seeds)
}

func (s *LockedStore) GetRoom(ctx context.Context, roomID int64) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetRoom(ctx, roomID)
}

func (s *LockedStore) ListRooms(ctx context.Context) ([]*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.ListRooms(ctx)
}

func (s *LockedStore) SetRoomStage(ctx context.Context, roomID int64, stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SetRoomStage(ctx, roomID, stage)
}

func (s *LockedStore) SetRoomCurrentTeam(ctx context.Context, roomID int64, team string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SetRoomCurrentTeam(ctx, roomID, team)
}

func (s *LockedStore) GetField(ctx context.Context, fieldID int64) (*Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetField(ctx, fieldID)
}

func (s *LockedStore) GetFields(ctx context.Context, roomID int64) ([]*Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetFields(ctx, roomID)
}

func (s *LockedStore) MarkFieldUsed(ctx context.Context, fieldID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.MarkFieldUsed(ctx, fieldID)
}

func (s *LockedStore) CreatePlayer(ctx context.Context, roomID int64, username, team, role string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.CreatePlayer(ctx, roomID, username, team, role)
}

func (s *LockedStore) GetPlayer(ctx context.Context, playerID int64) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetPlayer(ctx, playerID)
}

func (s *LockedStore) GetPlayers(ctx context.Context, roomID int64) ([]*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetPlayers(ctx, roomID)
}

func (s *LockedStore) RecordEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.RecordEvent(ctx, event)
}

func (s *LockedStore) ListEvents(ctx context.Context, roomID int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.ListEvents(ctx, roomID)
}

func (s *LockedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
