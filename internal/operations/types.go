package operations

import (
	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/multicapture"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	"github.com/juspay/hyperswitch-sub035/pkg/security"
)

// Merchant is the authenticated merchant context a request runs under.
type Merchant struct {
	Account  models.MerchantAccount
	Profile  models.BusinessProfile
	KeyStore models.MerchantKeyStore
}

func (m Merchant) ID() string {
	return m.Account.MerchantID
}

// AttemptRecord describes an attempt made outside the switch.
type AttemptRecord struct {
	Connector              string
	MerchantConnectorID    string
	Status                 enums.AttemptStatus
	Amount                 int64
	ConnectorTransactionID string
	ErrorCode              string
	ErrorMessage           string
}

// Request is the flow input after API decoding.
type Request struct {
	MerchantID          string
	RequestID           string
	AmountToCapture     *int64
	PaymentMethod       *connectors.PaymentMethod
	MerchantConnectorID string
	CancellationReason  string
	Record              *AttemptRecord
	// Recovery marks an authorize issued by the passive churn recovery workflow.
	Recovery            bool
	OverrideLockRetries *uint32
}

type ValidateResult struct {
	MerchantID    string
	StorageScheme enums.StorageScheme
	Requeue       bool
}

// PaymentData is the aggregate each pipeline stage receives and returns.
type PaymentData struct {
	Flow     enums.PaymentFlow
	Merchant Merchant
	Request  Request

	Intent         models.PaymentIntent
	Attempt        models.PaymentAttempt
	PreviousStatus enums.IntentStatus
	NewAttempt     bool
	Captures       *multicapture.Data
	Capture        *models.Capture
	PaymentMethod  *connectors.PaymentMethod
	Credentials    connectors.Credentials
	Result         *connectors.Result
	GSMRetries     int
	WebhookQueued  bool
	// RecoveryScheduled is set when a failed recorded attempt was offered to
	// passive recovery; false means the payment was already tracked.
	RecoveryScheduled *bool
	merchantCipher    *security.Cipher
}

// ConnectorName returns the connector bound to the active attempt.
func (d PaymentData) ConnectorName() string {
	if d.Attempt.Connector == nil {
		return ""
	}
	return *d.Attempt.Connector
}
