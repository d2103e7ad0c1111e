package models

import (
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// Capture records one partial capture issued against an authorized attempt.
type Capture struct {
	CaptureID          string              `gorm:"column:capture_id;primaryKey"`
	PaymentID          string              `gorm:"column:payment_id;not null;index"`
	AttemptID          string              `gorm:"column:attempt_id;not null;index"`
	MerchantID         string              `gorm:"column:merchant_id;not null"`
	Status             enums.CaptureStatus `gorm:"column:status;not null"`
	Amount             int64               `gorm:"column:amount;not null"`
	Currency           string              `gorm:"column:currency;not null"`
	Connector          string              `gorm:"column:connector;not null"`
	ConnectorCaptureID *string             `gorm:"column:connector_capture_id"`
	CaptureSequence    int                 `gorm:"column:capture_sequence;not null"`
	ErrorCode          *string             `gorm:"column:error_code"`
	ErrorMessage       *string             `gorm:"column:error_message"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	ModifiedAt         time.Time           `gorm:"column:modified_at;autoUpdateTime"`
}

func (Capture) TableName() string { return "captures" }
