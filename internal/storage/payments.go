package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/internal/repo"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

// PaymentRepository persists payment intents and attempts.
type PaymentRepository struct {
	base repo.Base
}

func NewPaymentRepository(provider db.Provider) *PaymentRepository {
	return &PaymentRepository{base: repo.NewBase(provider)}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{base: r.base.WithTx(tx)}
}

// Transaction runs fn with a repository bound to a single transaction.
func (r *PaymentRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB, txRepo *PaymentRepository) error) error {
	return r.base.Transaction(ctx, func(tx *gorm.DB) error {
		return fn(tx, r.WithTx(tx))
	})
}

func (r *PaymentRepository) InsertIntent(ctx context.Context, intent *models.PaymentIntent) error {
	if intent == nil {
		return errors.New("intent is required")
	}
	return r.base.DB(ctx).Create(intent).Error
}

func (r *PaymentRepository) InsertAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt == nil {
		return errors.New("attempt is required")
	}
	return r.base.DB(ctx).Create(attempt).Error
}

func (r *PaymentRepository) FindIntent(ctx context.Context, merchantID, paymentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.base.DB(ctx).
		Where("merchant_id = ? AND payment_id = ?", merchantID, paymentID).
		First(&intent).Error
	if err != nil {
		return nil, notFound(err, "payment intent not found")
	}
	return &intent, nil
}

func (r *PaymentRepository) FindAttempt(ctx context.Context, merchantID, attemptID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.base.DB(ctx).
		Where("merchant_id = ? AND attempt_id = ?", merchantID, attemptID).
		First(&attempt).Error
	if err != nil {
		return nil, notFound(err, "payment attempt not found")
	}
	return &attempt, nil
}

// FindAttemptByConnectorTransaction resolves the attempt a connector refers to
// in its webhooks. The lookup spans merchants.
func (r *PaymentRepository) FindAttemptByConnectorTransaction(ctx context.Context, connector, transactionID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.base.DB(ctx).
		Where("connector = ? AND connector_transaction_id = ?", connector, transactionID).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, notFound(err, "payment attempt not found")
	}
	return &attempt, nil
}

// FindActiveAttempt returns the attempt referenced by intent.ActiveAttemptID, or nil when unset.
func (r *PaymentRepository) FindActiveAttempt(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentAttempt, error) {
	if intent == nil || intent.ActiveAttemptID == nil || *intent.ActiveAttemptID == "" {
		return nil, nil
	}
	return r.FindAttempt(ctx, intent.MerchantID, *intent.ActiveAttemptID)
}

func (r *PaymentRepository) ListAttempts(ctx context.Context, merchantID, paymentID string) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.base.DB(ctx).
		Where("merchant_id = ? AND payment_id = ?", merchantID, paymentID).
		Order("attempt_count ASC").
		Order("created_at ASC").
		Find(&attempts).Error
	return attempts, err
}

// UpdateIntent writes every column of intent.
func (r *PaymentRepository) UpdateIntent(ctx context.Context, intent *models.PaymentIntent) error {
	if intent == nil {
		return errors.New("intent is required")
	}
	res := r.base.DB(ctx).Model(intent).Select("*").Omit("created_at").Updates(intent)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	return nil
}

// UpsertAttempt inserts a new attempt or overwrites an existing one.
func (r *PaymentRepository) UpsertAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt == nil {
		return errors.New("attempt is required")
	}
	return r.base.DB(ctx).Save(attempt).Error
}
