package storage

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/juspay/hyperswitch-sub035/internal/repo"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
)

type ConfigRepository struct {
	base repo.Base
}

func NewConfigRepository(provider db.Provider) *ConfigRepository {
	return &ConfigRepository{base: repo.NewBase(provider)}
}

// Find returns the raw value stored under key and whether it exists.
func (r *ConfigRepository) Find(ctx context.Context, key string) (string, bool, error) {
	var entry models.ConfigEntry
	err := r.base.DB(ctx).Where("key = ?", key).First(&entry).Error
	if err != nil {
		if db.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return entry.Config, true, nil
}

func (r *ConfigRepository) Upsert(ctx context.Context, key, value string) error {
	entry := models.ConfigEntry{Key: key, Config: value}
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"config"}),
		}).
		Create(&entry).Error
}
