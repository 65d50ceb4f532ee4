package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresStore keeps rooms in Postgres through gorm. The schema is owned by
// the embedded migrations, not by AutoMigrate.
type PostgresStore struct {
	db *gorm.DB
}

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type roomRecord struct {
	ID          int64     `gorm:"primaryKey"`
	Stage       string    `gorm:"size:32;not null"`
	CurrentTeam string    `gorm:"size:16;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (roomRecord) TableName() string { return "rooms" }

type fieldRecord struct {
	ID        int64     `gorm:"primaryKey"`
	RoomID    int64     `gorm:"index;not null"`
	Team      string    `gorm:"size:16;not null"`
	Text      string    `gorm:"size:64;not null"`
	IsUsed    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (fieldRecord) TableName() string { return "fields" }

type playerRecord struct {
	ID        int64     `gorm:"primaryKey"`
	RoomID    int64     `gorm:"index;not null"`
	Username  string    `gorm:"size:64;not null"`
	Team      string    `gorm:"size:16;not null"`
	Role      string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (playerRecord) TableName() string { return "players" }

type eventRecord struct {
	ID        int64          `gorm:"primaryKey"`
	RoomID    int64          `gorm:"index;not null"`
	PlayerID  *int64         `gorm:"index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (eventRecord) TableName() string { return "events" }

// NewPostgresStore migrates and connects to dsn, which must be a
// postgres:// URL.
func NewPostgresStore(dsn string, opts PoolOptions) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("database url is not set")
	}

	if err := MigratePostgres(dsn); err != nil {
		return nil, err
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return &PostgresStore{db: conn}, nil
}

func (s *PostgresStore) CreateRoom(ctx context.Context, seeds []FieldSeed) (*Room, error) {
	record := roomRecord{
		Stage:       InitialStage,
		CurrentTeam: InitialTeam,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		return createFields(tx, record.ID, seeds)
	})
	if err != nil {
		return nil, err
	}
	return record.toRoom(), nil
}

func (s *PostgresStore) InsertFields(ctx context.Context, roomID int64, seeds []FieldSeed) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createFields(tx, roomID, seeds)
	})
}

func createFields(tx *gorm.DB, roomID int64, seeds []FieldSeed) error {
	if len(seeds) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]fieldRecord, len(seeds))
	for i, seed := range seeds {
		records[i] = fieldRecord{
			RoomID:    roomID,
			Team:      seed.Team,
			Text:      seed.Text,
			CreatedAt: now,
		}
	}
	if err := tx.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to insert fields: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, roomID int64) (*Room, error) {
	var record roomRecord
	if err := s.db.WithContext(ctx).First(&record, roomID).Error; err != nil {
		return nil, notFound(err, "failed to get room")
	}
	return record.toRoom(), nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]*Room, error) {
	var records []roomRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	rooms := make([]*Room, len(records))
	for i := range records {
		rooms[i] = records[i].toRoom()
	}
	return rooms, nil
}

func (s *PostgresStore) SetRoomStage(ctx context.Context, roomID int64, stage string) error {
	return s.updateRoom(ctx, roomID, "stage", stage)
}

func (s *PostgresStore) SetRoomCurrentTeam(ctx context.Context, roomID int64, team string) error {
	return s.updateRoom(ctx, roomID, "current_team", team)
}

func (s *PostgresStore) updateRoom(ctx context.Context, roomID int64, column, value string) error {
	result := s.db.WithContext(ctx).Model(&roomRecord{}).Where("id = ?", roomID).Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("failed to update room: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetField(ctx context.Context, fieldID int64) (*Field, error) {
	var record fieldRecord
	if err := s.db.WithContext(ctx).First(&record, fieldID).Error; err != nil {
		return nil, notFound(err, "failed to get field")
	}
	return record.toField(), nil
}

func (s *PostgresStore) GetFields(ctx context.Context, roomID int64) ([]*Field, error) {
	var records []fieldRecord
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get fields: %w", err)
	}
	fields := make([]*Field, len(records))
	for i := range records {
		fields[i] = records[i].toField()
	}
	return fields, nil
}

func (s *PostgresStore) MarkFieldUsed(ctx context.Context, fieldID int64) (bool, error) {
	db := s.db.WithContext(ctx)
	result := db.Model(&fieldRecord{}).
		Where("id = ? AND is_used = ?", fieldID, false).
		Update("is_used", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark field used: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := db.Model(&fieldRecord{}).Where("id = ?", fieldID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check field: %w", err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *PostgresStore) CreatePlayer(ctx context.Context, roomID int64, username, team, role string) (*Player, error) {
	record := playerRecord{
		RoomID:    roomID,
		Username:  username,
		Team:      team,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return record.toPlayer(), nil
}

func (s *PostgresStore) GetPlayer(ctx context.Context, playerID int64) (*Player, error) {
	var record playerRecord
	if err := s.db.WithContext(ctx).First(&record, playerID).Error; err != nil {
		return nil, notFound(err, "failed to get player")
	}
	return record.toPlayer(), nil
}

func (s *PostgresStore) GetPlayers(ctx context.Context, roomID int64) ([]*Player, error) {
	var records []playerRecord
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	players := make([]*Player, len(records))
	for i := range records {
		players[i] = records[i].toPlayer()
	}
	return players, nil
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *Event) error {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	record := eventRecord{
		RoomID:    event.RoomID,
		PlayerID:  event.PlayerID,
		Type:      event.Type,
		Payload:   datatypes.JSON(payload),
		CreatedAt: event.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	event.ID = record.ID
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, roomID int64) ([]*Event, error) {
	var records []eventRecord
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]*Event, len(records))
	for i, r := range records {
		events[i] = &Event{
			ID:        r.ID,
			RoomID:    r.RoomID,
			PlayerID:  r.PlayerID,
			Type:      r.Type,
			Payload:   []byte(r.Payload),
			CreatedAt: r.CreatedAt,
		}
	}
	return events, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (r roomRecord) toRoom() *Room {
	return &Room{ID: r.ID, Stage: r.Stage, CurrentTeam: r.CurrentTeam, CreatedAt: r.CreatedAt}
}

func (r fieldRecord) toField() *Field {
	return &Field{ID: r.ID, RoomID: r.RoomID, Team: r.Team, Text: r.Text, IsUsed: r.IsUsed, CreatedAt: r.CreatedAt}
}

func (r playerRecord) toPlayer() *Player {
	return &Player{ID: r.ID, RoomID: r.RoomID, Username: r.Username, Team: r.Team, Role: r.Role, CreatedAt: r.CreatedAt}
}
