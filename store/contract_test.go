package store_test

import (
	"context"
	"fmt"
	"testing"

	"agenci/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardSeeds() []store.FieldSeed {
	seeds := make([]store.FieldSeed, 0, 25)
	for i := 0; i < 25; i++ {
		team := "neutral"
		switch {
		case i < 7:
			team = "red"
		case i < 13:
			team = "blue"
		case i == 13:
			team = "black"
		}
		seeds = append(seeds, store.FieldSeed{Text: fmt.Sprintf("word-%02d", i), Team: team})
	}
	return seeds
}

// runStoreContract exercises behaviour every Store backend must share.
func runStoreContract(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("CreateRoom", func(t *testing.T) {
		room, err := s.CreateRoom(ctx, boardSeeds())
		require.NoError(t, err)
		assert.NotZero(t, room.ID)
		assert.Equal(t, store.InitialStage, room.Stage)
		assert.Equal(t, store.InitialTeam, room.CurrentTeam)

		got, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, room.ID, got.ID)
		assert.False(t, got.CreatedAt.IsZero())

		fields, err := s.GetFields(ctx, room.ID)
		require.NoError(t, err)
		assert.Len(t, fields, 25)
		for _, f := range fields {
			assert.Equal(t, room.ID, f.RoomID)
			assert.False(t, f.IsUsed)
		}
	})

	t.Run("CreateRoom_RollsBackOnFieldFailure", func(t *testing.T) {
		before, err := s.ListRooms(ctx)
		require.NoError(t, err)

		seeds := boardSeeds()
		seeds[24].Text = seeds[0].Text

		_, err = s.CreateRoom(ctx, seeds)
		require.Error(t, err)

		after, err := s.ListRooms(ctx)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("InsertFields_AllOrNothing", func(t *testing.T) {
		room, err := s.CreateRoom(ctx, nil)
		require.NoError(t, err)

		bad := []store.FieldSeed{{Text: "same", Team: "red"}, {Text: "same", Team: "blue"}}
		require.Error(t, s.InsertFields(ctx, room.ID, bad))

		fields, err := s.GetFields(ctx, room.ID)
		require.NoError(t, err)
		assert.Empty(t, fields)

		require.NoError(t, s.InsertFields(ctx, room.ID, boardSeeds()))
		fields, err = s.GetFields(ctx, room.ID)
		require.NoError(t, err)
		assert.Len(t, fields, 25)
	})

	t.Run("GetRoom_NotFound", func(t *testing.T) {
		_, err := s.GetRoom(ctx, 999999)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SetRoomStageAndTeam", func(t *testing.T) {
		room, err := s.CreateRoom(ctx, boardSeeds())
		require.NoError(t, err)

		require.NoError(t, s.SetRoomStage(ctx, room.ID, "in_progress"))
		require.NoError(t, s.SetRoomCurrentTeam(ctx, room.ID, "blue"))

		got, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, "in_progress", got.Stage)
		assert.Equal(t, "blue", got.CurrentTeam)

		assert.ErrorIs(t, s.SetRoomStage(ctx, 999999, "finished"), store.ErrNotFound)
		assert.ErrorIs(t, s.SetRoomCurrentTeam(ctx, 999999, "red"), store.ErrNotFound)
	})

	t.Run("MarkFieldUsed", func(t *testing.T) {
		room, err := s.CreateRoom(ctx, boardSeeds())
		require.NoError(t, err)
		fields, err := s.GetFields(ctx, room.ID)
		require.NoError(t, err)

		changed, err := s.MarkFieldUsed(ctx, fields[0].ID)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.MarkFieldUsed(ctx, fields[0].ID)
		require.NoError(t, err)
		assert.False(t, changed)

		field, err := s.GetField(ctx, fields[0].ID)
		require.NoError(t, err)
		assert.True(t, field.IsUsed)

		_, err = s.MarkFieldUsed(ctx, 999999)
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.GetField(ctx, 999999)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Players", func(t *testing.T) {
		room, err := s.CreateRoom(ctx, boardSeeds())
		require.NoError(t, err)

		p1, err := s.CreatePlayer(ctx, room.ID, "ala", "red", "shower")
		require.NoError(t, err)
		p2, err := s.CreatePlayer(ctx, room.ID, "ola", "blue", "guesser")
		require.NoError(t, err)
		assert.NotEqual(t, p1.ID, p2.ID)

		got, err := s.GetPlayer(ctx, p2.ID)
		require.NoError(t, err)
		assert.Equal(t, "ola", got.Username)
		assert.Equal(t, "blue", got.Team)
		assert.Equal(t, "guesser", got.Role)
		assert.Equal(t, room.ID, got.RoomID)

		players, err := s.GetPlayers(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, players, 2)
		assert.Equal(t, p1.ID, players[0].ID)

		_, err = s.GetPlayer(ctx, 999999)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Events", func(t *testing.T) {
		room, err := s.CreateRoom(ctx, boardSeeds())
		require.NoError(t, err)
		player, err := s.CreatePlayer(ctx, room.ID, "ala", "red", "guesser")
		require.NoError(t, err)

		require.NoError(t, s.RecordEvent(ctx, &store.Event{RoomID: room.ID, Type: "room-created"}))
		ev := &store.Event{RoomID: room.ID, PlayerID: &player.ID, Type: "player-joined", Payload: []byte(`{"username":"ala"}`)}
		require.NoError(t, s.RecordEvent(ctx, ev))
		assert.NotZero(t, ev.ID)

		events, err := s.ListEvents(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "room-created", events[0].Type)
		assert.Nil(t, events[0].PlayerID)
		require.NotNil(t, events[1].PlayerID)
		assert.Equal(t, player.ID, *events[1].PlayerID)
		assert.JSONEq(t, `{"username":"ala"}`, string(events[1].Payload))
	})
}
