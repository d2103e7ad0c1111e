package storage

import (
	"context"
	"errors"

	"gorm.io/gorm/clause"

	"github.com/juspay/hyperswitch-sub035/internal/repo"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
)

// GSMKey identifies one gateway status map rule.
type GSMKey struct {
	Connector string
	Flow      string
	SubFlow   string
	Code      string
	Message   string
}

type GSMRepository struct {
	base repo.Base
}

func NewGSMRepository(provider db.Provider) *GSMRepository {
	return &GSMRepository{base: repo.NewBase(provider)}
}

// Find returns the matching rule, or nil when none is configured.
func (r *GSMRepository) Find(ctx context.Context, key GSMKey) (*models.GatewayStatusMap, error) {
	var rule models.GatewayStatusMap
	err := r.base.DB(ctx).
		Where("connector = ? AND flow = ? AND sub_flow = ? AND code = ? AND message = ?",
			key.Connector, key.Flow, key.SubFlow, key.Code, key.Message).
		First(&rule).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *GSMRepository) Upsert(ctx context.Context, rule *models.GatewayStatusMap) error {
	if rule == nil {
		return errors.New("gsm rule is required")
	}
	return r.base.DB(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rule).Error
}
