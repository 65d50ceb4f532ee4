package game

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"agenci/store"
	"agenci/words"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return store.NewLocked(s)
}

type fixture struct {
	store  store.Store
	lobby  *Lobby
	engine *Engine
	room   *Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newTestStore(t)
	lobby := NewLobby(st, words.FromSlice(wordList(40))).WithRand(seededRand(3))
	room, _, err := lobby.CreateRoom(context.Background())
	require.NoError(t, err)
	return &fixture{store: st, lobby: lobby, engine: NewEngine(st), room: room}
}

func (f *fixture) join(t *testing.T, name, team, role string) *Player {
	t.Helper()
	res, _, err := f.engine.JoinRoom(context.Background(), JoinRequest{
		RoomID:   f.room.ID,
		Username: name,
		Team:     team,
		Role:     role,
	})
	require.NoError(t, err)
	return res.Player
}

func (f *fixture) fieldOf(t *testing.T, team Team) *Field {
	t.Helper()
	board, err := f.engine.GetBoard(context.Background(), f.room.ID, 0)
	require.NoError(t, err)
	for _, fl := range board {
		raw, err := f.engine.GetField(context.Background(), fl.ID)
		require.NoError(t, err)
		if raw.Team == team {
			return raw
		}
	}
	t.Fatalf("no %s field on board", team)
	return nil
}

func TestEngine_RevealScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	guesser := f.join(t, "bob", "blue", "guesser")
	shower := f.join(t, "alice", "red", "shower")
	black := f.fieldOf(t, TeamBlack)

	_, _, err := f.engine.RevealField(ctx, shower.ID, black.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	res, ev, err := f.engine.RevealField(ctx, guesser.ID, black.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Field.IsUsed)
	require.NotNil(t, ev)
	assert.Equal(t, EventFieldUpdated, ev.Type)
	assert.Equal(t, f.room.ID, ev.RoomID)
	assert.Equal(t, guesser.ID, ev.PlayerID)

	// no auto-finish on black
	room, err := f.lobby.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, StageWaitingForPlayers, room.Stage)

	res, ev, err = f.engine.RevealField(ctx, guesser.ID, black.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, ev)
}

func TestEngine_RevealUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	guesser := f.join(t, "bob", "", "guesser")

	_, _, err := f.engine.RevealField(ctx, 9999, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.engine.RevealField(ctx, guesser.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ConcurrentRevealsChangeOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	guesser := f.join(t, "bob", "", "guesser")
	field := f.fieldOf(t, TeamNeutral)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := f.engine.RevealField(ctx, guesser.ID, field.ID)
			if err != nil {
				return
			}
			if res.Changed {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changed)
}

func TestEngine_JoinAssignment(t *testing.T) {
	f := newFixture(t)

	first := f.join(t, "a", "", "")
	assert.Equal(t, TeamRed, first.Team)
	assert.Equal(t, RoleShower, first.Role)

	second := f.join(t, "b", "", "")
	assert.Equal(t, TeamBlue, second.Team)
	assert.Equal(t, RoleShower, second.Role)

	third := f.join(t, "c", "", "")
	assert.Equal(t, TeamRed, third.Team)
	assert.Equal(t, RoleGuesser, third.Role)

	explicit := f.join(t, "d", "blue", "guesser")
	assert.Equal(t, TeamBlue, explicit.Team)
	assert.Equal(t, RoleGuesser, explicit.Role)
}

func TestEngine_JoinValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		req  JoinRequest
		want error
	}{
		{"empty username", JoinRequest{RoomID: f.room.ID, Username: " "}, ErrInvalidUsername},
		{"non-playing team", JoinRequest{RoomID: f.room.ID, Username: "x", Team: "black"}, ErrInvalidTeam},
		{"unknown role", JoinRequest{RoomID: f.room.ID, Username: "x", Role: "captain"}, ErrInvalidRole},
		{"unknown room", JoinRequest{RoomID: 9999, Username: "x"}, ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.engine.JoinRoom(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEngine_Rejoin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.join(t, "alice", "", "")

	res, ev, err := f.engine.JoinRoom(ctx, JoinRequest{RoomID: f.room.ID, Username: "ignored", PlayerID: p.ID})
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Nil(t, ev)
	assert.Equal(t, p.ID, res.Player.ID)
	assert.Equal(t, "alice", res.Player.Username)

	other, _, err := f.lobby.CreateRoom(ctx)
	require.NoError(t, err)
	res, ev, err = f.engine.JoinRoom(ctx, JoinRequest{RoomID: other.ID, Username: "alice", PlayerID: p.ID})
	require.NoError(t, err)
	assert.False(t, res.Resumed)
	require.NotNil(t, ev)
	assert.Equal(t, EventPlayerJoined, ev.Type)
	assert.NotEqual(t, p.ID, res.Player.ID)

	players, err := f.engine.GetPlayers(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Len(t, players, 1)
}

func TestEngine_RoomLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for id := int64(9000); id < 9100; id++ {
		_, _, err := f.engine.AdvanceStage(ctx, id)
		require.ErrorIs(t, err, ErrNotFound)
		_, _, err = f.engine.ToggleCurrentTeam(ctx, id)
		require.ErrorIs(t, err, ErrNotFound)
		_, _, err = f.engine.JoinRoom(ctx, JoinRequest{RoomID: id, Username: "x"})
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Zero(t, f.engine.locks.size())

	f.join(t, "alice", "", "")
	_, _, err := f.engine.AdvanceStage(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Zero(t, f.engine.locks.size())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.engine.ToggleCurrentTeam(ctx, f.room.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, f.engine.locks.size())
}

func TestRoomLocks_SerializeHolders(t *testing.T) {
	var l roomLocks
	unlock := l.lock(1)
	acquired := make(chan struct{})
	go func() {
		release := l.lock(1)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held room lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return l.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEngine_StageAndTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	room, ev, err := f.engine.AdvanceStage(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, StageInProgress, room.Stage)
	require.NotNil(t, ev)
	assert.Equal(t, EventRoomUpdated, ev.Type)

	room, _, err = f.engine.AdvanceStage(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, StageFinished, room.Stage)

	room, ev, err = f.engine.AdvanceStage(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, StageFinished, room.Stage)
	assert.Nil(t, ev)

	room, _, err = f.engine.ToggleCurrentTeam(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, TeamBlue, room.CurrentTeam)
	room, _, err = f.engine.ToggleCurrentTeam(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, TeamRed, room.CurrentTeam)

	_, _, err = f.engine.AdvanceStage(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ToggleFromNonPlayingTeam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SetRoomCurrentTeam(ctx, f.room.ID, "black"))

	room, _, err := f.engine.ToggleCurrentTeam(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, TeamRed, room.CurrentTeam)
}

func TestEngine_BoardMasking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	shower := f.join(t, "alice", "red", "shower")
	guesser := f.join(t, "bob", "red", "guesser")

	full, err := f.engine.GetBoard(ctx, f.room.ID, shower.ID)
	require.NoError(t, err)
	require.Len(t, full, BoardSize)
	for _, fl := range full {
		assert.NotEmpty(t, fl.Team)
	}

	masked, err := f.engine.GetBoard(ctx, f.room.ID, guesser.ID)
	require.NoError(t, err)
	for _, fl := range masked {
		assert.Empty(t, fl.Team)
	}

	_, err = f.engine.GetBoard(ctx, f.room.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_EventsAreRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.join(t, "alice", "", "")
	_, _, err := f.engine.AdvanceStage(ctx, f.room.ID)
	require.NoError(t, err)

	events, err := f.engine.ListEvents(ctx, f.room.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventRoomCreated, events[0].Type)
	assert.Equal(t, EventPlayerJoined, events[1].Type)
	assert.NotNil(t, events[1].PlayerID)
	assert.JSONEq(t, `{"stage":"in_progress","currentTeam":"red"}`, string(events[2].Payload))
}

func TestEngine_StorageFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	st := &MockStore{}
	st.On("GetPlayer", mock.Anything, int64(1)).
		Return(&store.Player{ID: 1, RoomID: 1, Username: "bob", Team: "red", Role: "guesser"}, nil)
	st.On("GetField", mock.Anything, int64(2)).
		Return(&store.Field{ID: 2, RoomID: 1, Team: "blue", Text: "apple"}, nil)
	st.On("MarkFieldUsed", mock.Anything, int64(2)).Return(false, boom)

	_, _, err := NewEngine(st).RevealField(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)
	st.AssertExpectations(t)
}

func TestEngine_InvalidPersistedValue(t *testing.T) {
	st := &MockStore{}
	st.On("GetRoom", mock.Anything, int64(1)).
		Return(&store.Room{ID: 1, Stage: "paused", CurrentTeam: "red"}, nil)

	_, _, err := NewEngine(st).AdvanceStage(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidValue)
	st.AssertNotCalled(t, "SetRoomStage", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_EventWriteFailureIsNotFatal(t *testing.T) {
	st := &MockStore{}
	st.On("GetRoom", mock.Anything, int64(1)).
		Return(&store.Room{ID: 1, Stage: "waiting_for_players", CurrentTeam: "red"}, nil)
	st.On("SetRoomStage", mock.Anything, int64(1), "in_progress").Return(nil)
	st.On("RecordEvent", mock.Anything, mock.Anything).Return(errors.New("log full"))

	room, ev, err := NewEngine(st).AdvanceStage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StageInProgress, room.Stage)
	assert.NotNil(t, ev)
}
