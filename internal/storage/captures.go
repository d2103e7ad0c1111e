package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/internal/repo"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
)

type CaptureRepository struct {
	base repo.Base
}

func NewCaptureRepository(provider db.Provider) *CaptureRepository {
	return &CaptureRepository{base: repo.NewBase(provider)}
}

func (r *CaptureRepository) WithTx(tx *gorm.DB) *CaptureRepository {
	return &CaptureRepository{base: r.base.WithTx(tx)}
}

func (r *CaptureRepository) Insert(ctx context.Context, capture *models.Capture) error {
	if capture == nil {
		return errors.New("capture is required")
	}
	return r.base.DB(ctx).Create(capture).Error
}

func (r *CaptureRepository) Upsert(ctx context.Context, capture *models.Capture) error {
	if capture == nil {
		return errors.New("capture is required")
	}
	return r.base.DB(ctx).Save(capture).Error
}

// ListByAttempt returns every capture of the attempt in sequence order.
func (r *CaptureRepository) ListByAttempt(ctx context.Context, merchantID, attemptID string) ([]models.Capture, error) {
	var captures []models.Capture
	err := r.base.DB(ctx).
		Where("merchant_id = ? AND attempt_id = ?", merchantID, attemptID).
		Order("capture_sequence ASC").
		Find(&captures).Error
	return captures, err
}
