package game

import (
	"fmt"
	"time"

	"agenci/store"
)

type Team string

const (
	TeamRed     Team = "red"
	TeamBlue    Team = "blue"
	TeamNeutral Team = "neutral"
	TeamBlack   Team = "black"
)

func ParseTeam(s string) (Team, error) {
	switch t := Team(s); t {
	case TeamRed, TeamBlue, TeamNeutral, TeamBlack:
		return t, nil
	}
	return "", fmt.Errorf("%w: team %q", ErrInvalidValue, s)
}

// IsPlaying reports whether the team can hold the turn.
func (t Team) IsPlaying() bool {
	return t == TeamRed || t == TeamBlue
}

// Opponent returns the team that plays after t. Non-playing values fall back
// to Red.
func (t Team) Opponent() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	default:
		return TeamRed
	}
}

type Stage string

const (
	StageWaitingForPlayers Stage = "waiting_for_players"
	StageInProgress        Stage = "in_progress"
	StageFinished          Stage = "finished"
)

func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageWaitingForPlayers, StageInProgress, StageFinished:
		return st, nil
	}
	return "", fmt.Errorf("%w: stage %q", ErrInvalidValue, s)
}

// Next returns the following stage. Finished is terminal.
func (s Stage) Next() Stage {
	switch s {
	case StageWaitingForPlayers:
		return StageInProgress
	default:
		return StageFinished
	}
}

type Role string

const (
	RoleShower  Role = "shower"
	RoleGuesser Role = "guesser"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleShower, RoleGuesser:
		return r, nil
	}
	return "", fmt.Errorf("%w: role %q", ErrInvalidValue, s)
}

type Room struct {
	ID          int64     `json:"id"`
	Stage       Stage     `json:"stage"`
	CurrentTeam Team      `json:"currentTeam"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Field struct {
	ID     int64 `json:"id"`
	RoomID int64 `json:"roomId"`
	// Team is empty when hidden from the viewer.
	Team      Team      `json:"team,omitempty"`
	Text      string    `json:"text"`
	IsUsed    bool      `json:"isUsed"`
	CreatedAt time.Time `json:"createdAt"`
}

type Player struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	Username  string    `json:"username"`
	Team      Team      `json:"team"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Seed is a board slot that has not been persisted yet.
type Seed struct {
	Text string
	Team Team
}

func roomFromStore(r *store.Room) (*Room, error) {
	stage, err := ParseStage(r.Stage)
	if err != nil {
		return nil, fmt.Errorf("room %d: %w", r.ID, err)
	}
	team, err := ParseTeam(r.CurrentTeam)
	if err != nil {
		return nil, fmt.Errorf("room %d: %w", r.ID, err)
	}
	return &Room{
		ID:          r.ID,
		Stage:       stage,
		CurrentTeam: team,
		CreatedAt:   r.CreatedAt,
	}, nil
}

func fieldFromStore(f *store.Field) (*Field, error) {
	team, err := ParseTeam(f.Team)
	if err != nil {
		return nil, fmt.Errorf("field %d: %w", f.ID, err)
	}
	return &Field{
		ID:        f.ID,
		RoomID:    f.RoomID,
		Team:      team,
		Text:      f.Text,
		IsUsed:    f.IsUsed,
		CreatedAt: f.CreatedAt,
	}, nil
}

func playerFromStore(p *store.Player) (*Player, error) {
	team, err := ParseTeam(p.Team)
	if err != nil {
		return nil, fmt.Errorf("player %d: %w", p.ID, err)
	}
	role, err := ParseRole(p.Role)
	if err != nil {
		return nil, fmt.Errorf("player %d: %w", p.ID, err)
	}
	return &Player{
		ID:        p.ID,
		RoomID:    p.RoomID,
		Username:  p.Username,
		Team:      team,
		Role:      role,
		CreatedAt: p.CreatedAt,
	}, nil
}

func seedsToStore(seeds []Seed) []store.FieldSeed {
	out := make([]store.FieldSeed, len(seeds))
	for i, s := range seeds {
		out[i] = store.FieldSeed{Text: s.Text, Team: string(s.Team)}
	}
	return out
}
