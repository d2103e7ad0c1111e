package storage

import (
	"context"
	"errors"

	"github.com/juspay/hyperswitch-sub035/internal/repo"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
)

type MerchantRepository struct {
	base repo.Base
}

func NewMerchantRepository(provider db.Provider) *MerchantRepository {
	return &MerchantRepository{base: repo.NewBase(provider)}
}

func (r *MerchantRepository) FindAccount(ctx context.Context, merchantID string) (*models.MerchantAccount, error) {
	var account models.MerchantAccount
	if err := r.base.DB(ctx).Where("merchant_id = ?", merchantID).First(&account).Error; err != nil {
		return nil, notFound(err, "merchant account not found")
	}
	return &account, nil
}

func (r *MerchantRepository) FindProfile(ctx context.Context, merchantID, profileID string) (*models.BusinessProfile, error) {
	var profile models.BusinessProfile
	err := r.base.DB(ctx).
		Where("merchant_id = ? AND profile_id = ?", merchantID, profileID).
		First(&profile).Error
	if err != nil {
		return nil, notFound(err, "business profile not found")
	}
	return &profile, nil
}

func (r *MerchantRepository) FindKeyStore(ctx context.Context, merchantID string) (*models.MerchantKeyStore, error) {
	var store models.MerchantKeyStore
	if err := r.base.DB(ctx).Where("merchant_id = ?", merchantID).First(&store).Error; err != nil {
		return nil, notFound(err, "merchant key store not found")
	}
	return &store, nil
}

func (r *MerchantRepository) FindConnectorAccount(ctx context.Context, merchantID, mcaID string) (*models.MerchantConnectorAccount, error) {
	var mca models.MerchantConnectorAccount
	err := r.base.DB(ctx).
		Where("merchant_id = ? AND merchant_connector_id = ?", merchantID, mcaID).
		First(&mca).Error
	if err != nil {
		return nil, notFound(err, "merchant connector account not found")
	}
	return &mca, nil
}

// ListEnabledConnectorAccounts returns the profile's usable MCAs in configured priority order.
func (r *MerchantRepository) ListEnabledConnectorAccounts(ctx context.Context, merchantID, profileID string) ([]models.MerchantConnectorAccount, error) {
	var accounts []models.MerchantConnectorAccount
	err := r.base.DB(ctx).
		Where("merchant_id = ? AND profile_id = ? AND disabled = ?", merchantID, profileID, false).
		Order("priority ASC").
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *MerchantRepository) InsertAccount(ctx context.Context, account *models.MerchantAccount) error {
	if account == nil {
		return errors.New("merchant account is required")
	}
	return r.base.DB(ctx).Create(account).Error
}

func (r *MerchantRepository) InsertProfile(ctx context.Context, profile *models.BusinessProfile) error {
	if profile == nil {
		return errors.New("business profile is required")
	}
	return r.base.DB(ctx).Create(profile).Error
}

func (r *MerchantRepository) InsertKeyStore(ctx context.Context, store *models.MerchantKeyStore) error {
	if store == nil {
		return errors.New("merchant key store is required")
	}
	return r.base.DB(ctx).Create(store).Error
}

func (r *MerchantRepository) InsertConnectorAccount(ctx context.Context, mca *models.MerchantConnectorAccount) error {
	if mca == nil {
		return errors.New("merchant connector account is required")
	}
	return r.base.DB(ctx).Create(mca).Error
}
