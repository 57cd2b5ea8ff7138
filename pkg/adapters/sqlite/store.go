// Package sqlite provides a file-backed RecordStore for single-node
// deployments that need durability without running Redis.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/parley-labs/parley/pkg/domain"
)

// sessionRow is the single-table schema: the record travels as a JSON blob,
// with the columns the queries actually need lifted out.
type sessionRow struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Level     string
	Closed    bool
	Data      []byte
	UpdatedAt time.Time
}

func (sessionRow) TableName() string {
	return "sessions"
}

// Store persists records in a SQLite database via gorm.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	row := sessionRow{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Level:     rec.Level,
		Closed:    rec.Closed,
		Data:      data,
		UpdatedAt: rec.LastUpdated,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(row.Data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	res := s.db.WithContext(ctx).Delete(&sessionRow{}, "id = ?", sessionID)
	if res.Error != nil {
		return fmt.Errorf("delete record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&sessionRow{}).
		Order("updated_at desc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return ids, nil
}
