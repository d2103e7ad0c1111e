package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// PaymentIntent is the merchant-facing payment. Amounts are in minor units.
type PaymentIntent struct {
	PaymentID       string              `gorm:"column:payment_id;primaryKey"`
	MerchantID      string              `gorm:"column:merchant_id;not null;index"`
	ProfileID       string              `gorm:"column:profile_id;not null"`
	Amount          int64               `gorm:"column:amount;not null"`
	Currency        string              `gorm:"column:currency;not null"`
	Status          enums.IntentStatus  `gorm:"column:status;not null"`
	CaptureMethod   enums.CaptureMethod `gorm:"column:capture_method;not null;default:'automatic'"`
	ActiveAttemptID *string             `gorm:"column:active_attempt_id"`
	AttemptCount    int                 `gorm:"column:attempt_count;not null;default:0"`
	AmountCaptured  *int64              `gorm:"column:amount_captured"`
	CustomerID      *string             `gorm:"column:customer_id"`
	Description     *string             `gorm:"column:description"`
	ReturnURL       *string             `gorm:"column:return_url"`
	FeatureMetadata datatypes.JSON      `gorm:"column:feature_metadata"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentIntent) TableName() string { return "payment_intent" }
