package models

import (
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// PaymentAttempt is one try of a payment against a single connector.
type PaymentAttempt struct {
	AttemptID              string              `gorm:"column:attempt_id;primaryKey"`
	PaymentID              string              `gorm:"column:payment_id;not null;index"`
	MerchantID             string              `gorm:"column:merchant_id;not null"`
	Status                 enums.AttemptStatus `gorm:"column:status;not null"`
	Connector              *string             `gorm:"column:connector"`
	MerchantConnectorID    *string             `gorm:"column:merchant_connector_id"`
	NetAmount              int64               `gorm:"column:net_amount;not null"`
	AmountToCapture        *int64              `gorm:"column:amount_to_capture"`
	AmountCapturable       int64               `gorm:"column:amount_capturable;not null;default:0"`
	Currency               string              `gorm:"column:currency;not null"`
	AttemptCount           int                 `gorm:"column:attempt_count;not null;default:1"`
	CaptureMethod          enums.CaptureMethod `gorm:"column:capture_method;not null;default:'automatic'"`
	MultipleCaptureCount   *int                `gorm:"column:multiple_capture_count"`
	ConnectorTransactionID *string             `gorm:"column:connector_transaction_id"`
	ErrorCode              *string             `gorm:"column:error_code"`
	ErrorMessage           *string             `gorm:"column:error_message"`
	ErrorReason            *string             `gorm:"column:error_reason"`
	PaymentToken           *string             `gorm:"column:payment_token"`
	PaymentMethodData      []byte              `gorm:"column:payment_method_data"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime"`
	ModifiedAt             time.Time           `gorm:"column:modified_at;autoUpdateTime"`
}

func (PaymentAttempt) TableName() string { return "payment_attempt" }
