package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Setting is one persisted value.
type Setting struct {
	Profile   string `gorm:"primaryKey;size:128"`
	Name      string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// SQLiteStore keeps profile state in a local SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("profile: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, fmt.Errorf("profile: migrate %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, profile, key string) (string, error) {
	var setting Setting
	err := s.db.WithContext(ctx).
		Where("profile = ? AND name = ?", profile, key).
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("profile: get %s/%s: %w", profile, key, err)
	}
	return setting.Value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, profile, key, value string) error {
	setting := Setting{Profile: profile, Name: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("profile: set %s/%s: %w", profile, key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, profile, key string) error {
	err := s.db.WithContext(ctx).
		Where("profile = ? AND name = ?", profile, key).
		Delete(&Setting{}).Error
	if err != nil {
		return fmt.Errorf("profile: delete %s/%s: %w", profile, key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
