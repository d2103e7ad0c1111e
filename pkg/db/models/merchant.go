package models

import (
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

type MerchantAccount struct {
	MerchantID     string              `gorm:"column:merchant_id;primaryKey"`
	MerchantName   string              `gorm:"column:merchant_name"`
	StorageScheme  enums.StorageScheme `gorm:"column:storage_scheme;not null;default:'postgres_only'"`
	PublishableKey string              `gorm:"column:publishable_key"`
	ReturnURL      *string             `gorm:"column:return_url"`
	WebhookURL     *string             `gorm:"column:webhook_url"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (MerchantAccount) TableName() string { return "merchant_account" }

type BusinessProfile struct {
	ProfileID              string    `gorm:"column:profile_id;primaryKey"`
	MerchantID             string    `gorm:"column:merchant_id;not null;index"`
	ProfileName            string    `gorm:"column:profile_name"`
	IsConnectorAgnosticMIT bool      `gorm:"column:is_connector_agnostic_mit;not null;default:false"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (BusinessProfile) TableName() string { return "business_profile" }

// MerchantConnectorAccount holds a merchant's credentials for one connector.
// ConnectorAccountDetails is encrypted with the merchant key store key.
type MerchantConnectorAccount struct {
	MerchantConnectorID     string    `gorm:"column:merchant_connector_id;primaryKey"`
	MerchantID              string    `gorm:"column:merchant_id;not null;index"`
	ProfileID               string    `gorm:"column:profile_id;not null"`
	ConnectorName           string    `gorm:"column:connector_name;not null"`
	ConnectorLabel          string    `gorm:"column:connector_label"`
	ConnectorAccountDetails []byte    `gorm:"column:connector_account_details"`
	Priority                int       `gorm:"column:priority;not null;default:0"`
	Disabled                bool      `gorm:"column:disabled;not null;default:false"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MerchantConnectorAccount) TableName() string { return "merchant_connector_account" }

// MerchantKeyStore holds the per-merchant data key, itself sealed with the master key.
type MerchantKeyStore struct {
	MerchantID string    `gorm:"column:merchant_id;primaryKey"`
	Key        []byte    `gorm:"column:key;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MerchantKeyStore) TableName() string { return "merchant_key_store" }
