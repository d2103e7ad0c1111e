package operations

import (
	"context"
	"strings"

	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

type CreateIntentParams struct {
	PaymentID     string
	ProfileID     string
	Amount        int64
	Currency      string
	CaptureMethod enums.CaptureMethod
	CustomerID    string
	Description   string
	ReturnURL     string
	Recurring     *RecurringDetails
}

// PaymentView is a read-only snapshot of a payment and its history.
type PaymentView struct {
	Intent   models.PaymentIntent
	Attempts []models.PaymentAttempt
	Captures []models.Capture
}

// LoadMerchant resolves the merchant context used by every flow.
func (p *Pipeline) LoadMerchant(ctx context.Context, merchantID, profileID string) (Merchant, error) {
	account, err := p.deps.Merchants.FindAccount(ctx, merchantID)
	if err != nil {
		return Merchant{}, err
	}
	keyStore, err := p.deps.Merchants.FindKeyStore(ctx, merchantID)
	if err != nil {
		return Merchant{}, err
	}
	m := Merchant{Account: *account, KeyStore: *keyStore}
	if profileID != "" {
		profile, err := p.deps.Merchants.FindProfile(ctx, merchantID, profileID)
		if err != nil {
			return Merchant{}, err
		}
		m.Profile = *profile
	}
	return m, nil
}

// CreateIntent stores a new intent waiting for a payment method.
func (p *Pipeline) CreateIntent(ctx context.Context, merchant Merchant, params CreateIntentParams) (*models.PaymentIntent, error) {
	if params.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if len(currency) != 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency must be an ISO 4217 code")
	}
	method := params.CaptureMethod
	if method == "" {
		method = enums.CaptureMethodAutomatic
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid capture_method")
	}
	profileID := params.ProfileID
	if profileID == "" {
		profileID = merchant.Profile.ProfileID
	}
	if profileID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile_id is required")
	}
	if _, err := p.deps.Merchants.FindProfile(ctx, merchant.ID(), profileID); err != nil {
		return nil, err
	}

	id := params.PaymentID
	if id == "" {
		id = NewID("pay")
	}
	now := p.deps.now()
	intent := &models.PaymentIntent{
		PaymentID:     id,
		MerchantID:    merchant.ID(),
		ProfileID:     profileID,
		Amount:        params.Amount,
		Currency:      currency,
		Status:        enums.IntentStatusRequiresPaymentMethod,
		CaptureMethod: method,
		CustomerID:    optional(params.CustomerID),
		Description:   optional(params.Description),
		ReturnURL:     optional(params.ReturnURL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if intent.ReturnURL == nil {
		intent.ReturnURL = merchant.Account.ReturnURL
	}
	if params.Recurring != nil {
		meta, err := FeatureMetadata{Recurring: params.Recurring}.JSON()
		if err != nil {
			return nil, err
		}
		intent.FeatureMetadata = meta
	}
	if err := p.deps.Payments.InsertIntent(ctx, intent); err != nil {
		return nil, err
	}
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"event":      "payment_intent_created",
		"payment_id": intent.PaymentID,
		"amount":     intent.Amount,
	}), "payment intent created")
	return intent, nil
}

// Retrieve reads a payment without taking the lock.
func (p *Pipeline) Retrieve(ctx context.Context, merchant Merchant, paymentID string) (PaymentView, error) {
	intent, err := p.deps.Payments.FindIntent(ctx, merchant.ID(), paymentID)
	if err != nil {
		return PaymentView{}, err
	}
	attempts, err := p.deps.Payments.ListAttempts(ctx, merchant.ID(), paymentID)
	if err != nil {
		return PaymentView{}, err
	}
	view := PaymentView{Intent: *intent, Attempts: attempts}
	if intent.ActiveAttemptID != nil && intent.CaptureMethod == enums.CaptureMethodManualMultiple {
		view.Captures, err = p.deps.Captures.ListByAttempt(ctx, merchant.ID(), *intent.ActiveAttemptID)
		if err != nil {
			return PaymentView{}, err
		}
	}
	return view, nil
}
