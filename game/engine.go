package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"agenci/store"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("only guessers may reveal fields")
	ErrInsufficientPool = errors.New("word pool too small for a board")
	ErrStorage          = errors.New("storage failure")
	ErrInvalidValue     = errors.New("invalid value")
	ErrInvalidUsername  = errors.New("username must be 1-32 characters")
	ErrInvalidTeam      = errors.New("team must be red or blue")
	ErrInvalidRole      = errors.New("role must be shower or guesser")
)

// Engine runs in-room operations: joining, revealing and the room state
// machine. It never broadcasts; callers fan out the returned events.
type Engine struct {
	store store.Store
	locks roomLocks
}

func NewEngine(store store.Store) *Engine {
	return &Engine{store: store}
}

type JoinRequest struct {
	RoomID   int64
	Username string
	// Team and Role are optional; empty values are assigned.
	Team string
	Role string
	// PlayerID resumes an existing player of the room when set.
	PlayerID int64
}

type JoinResult struct {
	Player  *Player `json:"player"`
	Resumed bool    `json:"resumed"`
}

type RevealResult struct {
	Field   *Field `json:"field"`
	Changed bool   `json:"changed"`
}

// JoinRoom seats a player in the room. Resuming an existing player returns
// no event.
func (e *Engine) JoinRoom(ctx context.Context, req JoinRequest) (*JoinResult, *Event, error) {
	unlock := e.locks.lock(req.RoomID)
	defer unlock()

	if _, err := e.getRoom(ctx, req.RoomID); err != nil {
		return nil, nil, err
	}

	if req.PlayerID != 0 {
		existing, err := e.getPlayer(ctx, req.PlayerID)
		switch {
		case err == nil && existing.RoomID == req.RoomID:
			log.Info().
				Int64("room_id", req.RoomID).
				Int64("player_id", existing.ID).
				Msg("player rejoined")
			return &JoinResult{Player: existing, Resumed: true}, nil, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, nil, err
		}
		// unknown or foreign player ids fall through to a fresh join
	}

	username, err := validateUsername(req.Username)
	if err != nil {
		return nil, nil, err
	}

	var team Team
	if req.Team != "" {
		if team, err = ParseTeam(req.Team); err != nil || !team.IsPlaying() {
			return nil, nil, ErrInvalidTeam
		}
	}
	var role Role
	if req.Role != "" {
		if role, err = ParseRole(req.Role); err != nil {
			return nil, nil, ErrInvalidRole
		}
	}

	if team == "" || role == "" {
		players, err := e.GetPlayers(ctx, req.RoomID)
		if err != nil {
			return nil, nil, err
		}
		team, role = assignSeat(players, team, role)
	}

	rec, err := e.store.CreatePlayer(ctx, req.RoomID, username, string(team), string(role))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	player, err := playerFromStore(rec)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Int64("room_id", req.RoomID).
		Int64("player_id", player.ID).
		Str("team", string(player.Team)).
		Str("role", string(player.Role)).
		Msg("player joined")

	ev := joinedEvent(player)
	recordEvent(ctx, e.store, ev)
	return &JoinResult{Player: player}, ev, nil
}

// assignSeat fills in whichever of team and role the player left open. The
// smaller team is picked (Red on a tie) and the first player of a team
// becomes its Shower.
func assignSeat(players []*Player, team Team, role Role) (Team, Role) {
	counts := map[Team]int{}
	showers := map[Team]int{}
	for _, p := range players {
		counts[p.Team]++
		if p.Role == RoleShower {
			showers[p.Team]++
		}
	}

	if team == "" {
		team = TeamRed
		if counts[TeamBlue] < counts[TeamRed] {
			team = TeamBlue
		}
	}
	if role == "" {
		role = RoleGuesser
		if showers[team] == 0 {
			role = RoleShower
		}
	}
	return team, role
}

func joinedEvent(p *Player) *Event {
	return &Event{
		Type:     EventPlayerJoined,
		RoomID:   p.RoomID,
		PlayerID: p.ID,
		Payload:  PlayerJoinedPayload{Username: p.Username},
	}
}

// RevealField marks a field as used on behalf of a guesser. Revealing an
// already used field succeeds with Changed false and no event.
func (e *Engine) RevealField(ctx context.Context, playerID, fieldID int64) (*RevealResult, *Event, error) {
	player, err := e.getPlayer(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	field, err := e.GetField(ctx, fieldID)
	if err != nil {
		return nil, nil, err
	}

	if err := AuthorizeReveal(player, field); err != nil {
		log.Info().
			Int64("player_id", playerID).
			Int64("field_id", fieldID).
			Str("role", string(player.Role)).
			Msg("reveal denied")
		return nil, nil, err
	}

	changed, err := e.store.MarkFieldUsed(ctx, fieldID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	field.IsUsed = true
	result := &RevealResult{Field: field, Changed: changed}
	if !changed {
		return result, nil, nil
	}

	log.Info().
		Int64("room_id", field.RoomID).
		Int64("player_id", playerID).
		Int64("field_id", fieldID).
		Str("team", string(field.Team)).
		Msg("field revealed")

	ev := &Event{
		Type:     EventFieldUpdated,
		RoomID:   field.RoomID,
		PlayerID: player.ID,
		Payload:  FieldUpdatedPayload{},
	}
	recordEvent(ctx, e.store, ev)
	return result, ev, nil
}

// AdvanceStage moves the room to its next stage. A finished room is left as
// is and no event is returned.
func (e *Engine) AdvanceStage(ctx context.Context, roomID int64) (*Room, *Event, error) {
	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.getRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	next := room.Stage.Next()
	if next == room.Stage {
		return room, nil, nil
	}
	if err := e.store.SetRoomStage(ctx, roomID, string(next)); err != nil {
		return nil, nil, storeErr(err)
	}
	room.Stage = next

	log.Info().Int64("room_id", roomID).Str("stage", string(next)).Msg("stage advanced")
	ev := roomUpdatedEvent(room)
	recordEvent(ctx, e.store, ev)
	return room, ev, nil
}

// ToggleCurrentTeam hands the turn to the other team.
func (e *Engine) ToggleCurrentTeam(ctx context.Context, roomID int64) (*Room, *Event, error) {
	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.getRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	if !room.CurrentTeam.IsPlaying() {
		log.Warn().
			Int64("room_id", roomID).
			Str("current_team", string(room.CurrentTeam)).
			Msg("room held a non-playing team; resetting turn to red")
	}
	next := room.CurrentTeam.Opponent()
	if err := e.store.SetRoomCurrentTeam(ctx, roomID, string(next)); err != nil {
		return nil, nil, storeErr(err)
	}
	room.CurrentTeam = next

	log.Info().Int64("room_id", roomID).Str("current_team", string(next)).Msg("turn changed")
	ev := roomUpdatedEvent(room)
	recordEvent(ctx, e.store, ev)
	return room, ev, nil
}

func roomUpdatedEvent(room *Room) *Event {
	return &Event{
		Type:    EventRoomUpdated,
		RoomID:  room.ID,
		Payload: RoomUpdatedPayload{Stage: room.Stage, CurrentTeam: room.CurrentTeam},
	}
}

// GetBoard returns the room's fields as seen by viewerID (zero for an
// anonymous viewer).
func (e *Engine) GetBoard(ctx context.Context, roomID, viewerID int64) ([]*Field, error) {
	if _, err := e.getRoom(ctx, roomID); err != nil {
		return nil, err
	}

	var viewer *Player
	if viewerID != 0 {
		p, err := e.getPlayer(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		viewer = p
	}

	recs, err := e.store.GetFields(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	fields := make([]*Field, 0, len(recs))
	for _, rec := range recs {
		f, err := fieldFromStore(rec)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return MaskBoard(fields, viewer), nil
}

func (e *Engine) GetField(ctx context.Context, fieldID int64) (*Field, error) {
	rec, err := e.store.GetField(ctx, fieldID)
	if err != nil {
		return nil, storeErr(err)
	}
	return fieldFromStore(rec)
}

func (e *Engine) GetPlayer(ctx context.Context, playerID int64) (*Player, error) {
	return e.getPlayer(ctx, playerID)
}

func (e *Engine) GetPlayers(ctx context.Context, roomID int64) ([]*Player, error) {
	recs, err := e.store.GetPlayers(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	players := make([]*Player, 0, len(recs))
	for _, rec := range recs {
		p, err := playerFromStore(rec)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

func (e *Engine) ListEvents(ctx context.Context, roomID int64) ([]*AuditEvent, error) {
	if _, err := e.getRoom(ctx, roomID); err != nil {
		return nil, err
	}
	recs, err := e.store.ListEvents(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	events := make([]*AuditEvent, len(recs))
	for i, r := range recs {
		events[i] = &AuditEvent{
			ID:        r.ID,
			RoomID:    r.RoomID,
			PlayerID:  r.PlayerID,
			Type:      r.Type,
			Payload:   r.Payload,
			CreatedAt: r.CreatedAt,
		}
	}
	return events, nil
}

func (e *Engine) getRoom(ctx context.Context, roomID int64) (*Room, error) {
	rec, err := e.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	return roomFromStore(rec)
}

func (e *Engine) getPlayer(ctx context.Context, playerID int64) (*Player, error) {
	rec, err := e.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return playerFromStore(rec)
}

func storeErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// roomLocks hands out one mutex per room for read-modify-write sequences.
// Entries live only while some caller holds or waits on them.
type roomLocks struct {
	mu    sync.Mutex
	locks map[int64]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func (l *roomLocks) lock(roomID int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*roomLock)
	}
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
