package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if strings.HasPrefix(dbPath, ":memory:") {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := MigrateSQLite(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, seeds []FieldSeed) (*Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	room := &Room{
		Stage:       InitialStage,
		CurrentTeam: InitialTeam,
		CreatedAt:   time.Now().UTC(),
	}
	result, err := tx.ExecContext(ctx,
		"INSERT INTO rooms (stage, current_team, created_at) VALUES (?, ?, ?)",
		room.Stage, room.CurrentTeam, room.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if room.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read room id: %w", err)
	}

	if err := insertFields(ctx, tx, room.ID, seeds); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return room, nil
}

func (s *SQLiteStore) InsertFields(ctx context.Context, roomID int64, seeds []FieldSeed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertFields(ctx, tx, roomID, seeds); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertFields(ctx context.Context, tx *sql.Tx, roomID int64, seeds []FieldSeed) error {
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO fields (room_id, team, text, is_used, created_at) VALUES (?, ?, ?, 0, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare field insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, seed := range seeds {
		if _, err := stmt.ExecContext(ctx, roomID, seed.Team, seed.Text, now); err != nil {
			return fmt.Errorf("failed to insert field %q: %w", seed.Text, err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetRoom(ctx context.Context, roomID int64) (*Room, error) {
	room := &Room{}
	var createdAt sqliteTime
	err := s.db.QueryRowContext(ctx,
		"SELECT id, stage, current_team, created_at FROM rooms WHERE id = ?",
		roomID,
	).Scan(&room.ID, &room.Stage, &room.CurrentTeam, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	room.CreatedAt = createdAt.Time
	return room, nil
}

func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*Room, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, stage, current_team, created_at FROM rooms ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		room := &Room{}
		var createdAt sqliteTime
		if err := rows.Scan(&room.ID, &room.Stage, &room.CurrentTeam, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		room.CreatedAt = createdAt.Time
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *SQLiteStore) SetRoomStage(ctx context.Context, roomID int64, stage string) error {
	return s.updateRoom(ctx, "UPDATE rooms SET stage = ? WHERE id = ?", stage, roomID)
}

func (s *SQLiteStore) SetRoomCurrentTeam(ctx context.Context, roomID int64, team string) error {
	return s.updateRoom(ctx, "UPDATE rooms SET current_team = ? WHERE id = ?", team, roomID)
}

func (s *SQLiteStore) updateRoom(ctx context.Context, query, value string, roomID int64) error {
	result, err := s.db.ExecContext(ctx, query, value, roomID)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetField(ctx context.Context, fieldID int64) (*Field, error) {
	field := &Field{}
	var createdAt sqliteTime
	err := s.db.QueryRowContext(ctx,
		"SELECT id, room_id, team, text, is_used, created_at FROM fields WHERE id = ?",
		fieldID,
	).Scan(&field.ID, &field.RoomID, &field.Team, &field.Text, &field.IsUsed, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	field.CreatedAt = createdAt.Time
	return field, nil
}

func (s *SQLiteStore) GetFields(ctx context.Context, roomID int64) ([]*Field, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, room_id, team, text, is_used, created_at FROM fields WHERE room_id = ? ORDER BY id",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get fields: %w", err)
	}
	defer rows.Close()

	var fields []*Field
	for rows.Next() {
		field := &Field{}
		var createdAt sqliteTime
		if err := rows.Scan(&field.ID, &field.RoomID, &field.Team, &field.Text, &field.IsUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		field.CreatedAt = createdAt.Time
		fields = append(fields, field)
	}
	return fields, rows.Err()
}

func (s *SQLiteStore) MarkFieldUsed(ctx context.Context, fieldID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE fields SET is_used = 1 WHERE id = ? AND is_used = 0",
		fieldID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark field used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark field used: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either already used or missing.
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM fields WHERE id = ?", fieldID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check field: %w", err)
	}
	return false, nil
}

func (s *SQLiteStore) CreatePlayer(ctx context.Context, roomID int64, username, team, role string) (*Player, error) {
	player := &Player{
		RoomID:    roomID,
		Username:  username,
		Team:      team,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO players (room_id, username, team, role, created_at) VALUES (?, ?, ?, ?, ?)",
		roomID, username, team, role, player.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	if player.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read player id: %w", err)
	}
	return player, nil
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID int64) (*Player, error) {
	player := &Player{}
	var createdAt sqliteTime
	err := s.db.QueryRowContext(ctx,
		"SELECT id, room_id, username, team, role, created_at FROM players WHERE id = ?",
		playerID,
	).Scan(&player.ID, &player.RoomID, &player.Username, &player.Team, &player.Role, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	player.CreatedAt = createdAt.Time
	return player, nil
}

func (s *SQLiteStore) GetPlayers(ctx context.Context, roomID int64) ([]*Player, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, room_id, username, team, role, created_at FROM players WHERE room_id = ? ORDER BY id",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	defer rows.Close()

	var players []*Player
	for rows.Next() {
		player := &Player{}
		var createdAt sqliteTime
		if err := rows.Scan(&player.ID, &player.RoomID, &player.Username, &player.Team, &player.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		player.CreatedAt = createdAt.Time
		players = append(players, player)
	}
	return players, rows.Err()
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, event *Event) error {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var playerID sql.NullInt64
	if event.PlayerID != nil {
		playerID = sql.NullInt64{Int64: *event.PlayerID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO events (room_id, player_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		event.RoomID, playerID, event.Type, string(payload), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	if event.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, roomID int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, room_id, player_id, type, payload, created_at FROM events WHERE room_id = ? ORDER BY id",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var (
			playerID  sql.NullInt64
			payload   string
			createdAt sqliteTime
		)
		if err := rows.Scan(&event.ID, &event.RoomID, &playerID, &event.Type, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if playerID.Valid {
			id := playerID.Int64
			event.PlayerID = &id
		}
		event.Payload = []byte(payload)
		event.CreatedAt = createdAt.Time
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTime accepts the shapes a DATETIME column comes back as.
type sqliteTime struct {
	time.Time
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *sqliteTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", value)
}

func (t *sqliteTime) parse(s string) error {
	// strip a trailing monotonic clock reading if one was stored
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
