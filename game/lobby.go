package game

import (
	"context"
	"math/rand/v2"
	"sync"

	"agenci/store"
	"agenci/words"

	"github.com/rs/zerolog/log"
)

// Lobby creates and lists rooms.
type Lobby struct {
	store store.Store
	pool  *words.Pool

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewLobby(store store.Store, pool *words.Pool) *Lobby {
	return &Lobby{
		store: store,
		pool:  pool,
		rng:   NewRand(),
	}
}

// WithRand replaces the lobby's random source; used to make boards
// reproducible.
func (l *Lobby) WithRand(rng *rand.Rand) *Lobby {
	l.rngMu.Lock()
	l.rng = rng
	l.rngMu.Unlock()
	return l
}

// CreateRoom generates a board and stores it together with a new room. A
// pool that is too small fails before anything is written.
func (l *Lobby) CreateRoom(ctx context.Context) (*Room, *Event, error) {
	l.rngMu.Lock()
	seeds, err := GenerateBoard(l.pool.Words(), l.rng)
	l.rngMu.Unlock()
	if err != nil {
		log.Error().Err(err).Int("pool_size", l.pool.Len()).Msg("cannot generate board")
		return nil, nil, err
	}

	rec, err := l.store.CreateRoom(ctx, seedsToStore(seeds))
	if err != nil {
		return nil, nil, storeErr(err)
	}
	room, err := roomFromStore(rec)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Int64("room_id", room.ID).Msg("room created")
	ev := &Event{
		Type:    EventRoomCreated,
		RoomID:  room.ID,
		Payload: RoomCreatedPayload{Fields: len(seeds)},
	}
	recordEvent(ctx, l.store, ev)
	return room, ev, nil
}

func (l *Lobby) ListRooms(ctx context.Context) ([]*Room, error) {
	recs, err := l.store.ListRooms(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	rooms := make([]*Room, 0, len(recs))
	for _, rec := range recs {
		room, err := roomFromStore(rec)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (l *Lobby) GetRoom(ctx context.Context, roomID int64) (*Room, error) {
	rec, err := l.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	return roomFromStore(rec)
}
