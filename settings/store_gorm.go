package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quailyquaily/auditdesk/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps settings in the "settings" table of a gorm database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb}
}

func (s *GormStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if s == nil || s.db == nil {
		return Entry{}, false, fmt.Errorf("nil settings db")
	}
	key = normalizeKey(key)
	if key == "" {
		return Entry{}, false, nil
	}
	var row models.Setting
	err := s.db.WithContext(ctx).Where(&models.Setting{Key: key}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entryFromModel(row), true, nil
}

func (s *GormStore) Set(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("nil settings db")
	}
	key := normalizeKey(e.Key)
	if key == "" {
		return fmt.Errorf("missing settings key")
	}
	row := models.Setting{
		Key:         key,
		Value:       e.Value,
		Description: strings.TrimSpace(e.Description),
		UpdatedAt:   time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) List(ctx context.Context) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("nil settings db")
	}
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, entryFromModel(row))
	}
	return out, nil
}

func entryFromModel(row models.Setting) Entry {
	return Entry{
		Key:         row.Key,
		Value:       row.Value,
		Description: row.Description,
		UpdatedAt:   row.UpdatedAt,
	}
}
