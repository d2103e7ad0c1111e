package operations

import (
	"context"
	"errors"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

type authorizeOp struct {
	base
}

func (o *authorizeOp) allowed(req Request) []enums.IntentStatus {
	if req.Recovery {
		return recoveryAuthorizeAllowed
	}
	return authorizeAllowed
}

func (o *authorizeOp) ValidateRequest(ctx context.Context, req Request, merchant Merchant) (ValidateResult, error) {
	res, err := o.base.ValidateRequest(ctx, req, merchant)
	if err != nil {
		return res, err
	}
	if pm := req.PaymentMethod; pm != nil && pm.Type == "" {
		return res, pkgerrors.New(pkgerrors.CodeValidation, "payment_method.type is required")
	}
	return res, nil
}

func (o *authorizeOp) GetTracker(ctx context.Context, paymentID string, req Request, merchant Merchant) (PaymentData, error) {
	data, err := o.loadTracker(ctx, paymentID, req, merchant, o.allowed(req))
	if err != nil {
		return PaymentData{}, err
	}

	pm := req.PaymentMethod
	if pm == nil && req.Recovery {
		meta, err := ParseFeatureMetadata(data.Intent.FeatureMetadata)
		if err != nil {
			return PaymentData{}, err
		}
		if meta.Recurring != nil {
			pm = meta.Recurring.PaymentMethod
		}
	}
	if pm == nil && len(data.Attempt.PaymentMethodData) > 0 {
		cipher, err := o.deps.merchantCipher(&data)
		if err != nil {
			return PaymentData{}, err
		}
		var stored connectors.PaymentMethod
		if err := cipher.OpenJSON(data.Attempt.PaymentMethodData, &stored); err != nil {
			return PaymentData{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrypt payment method")
		}
		pm = &stored
	}
	if pm == nil {
		return PaymentData{}, pkgerrors.New(pkgerrors.CodeValidation, "payment_method is required")
	}
	data.PaymentMethod = pm

	if data.Attempt.AttemptID == "" || data.Attempt.Status != enums.AttemptStatusStarted {
		data.Attempt = o.deps.newAttempt(data.Intent)
		data.NewAttempt = true
	}
	cipher, err := o.deps.merchantCipher(&data)
	if err != nil {
		return PaymentData{}, err
	}
	sealed, err := cipher.SealJSON(pm)
	if err != nil {
		return PaymentData{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encrypt payment method")
	}
	data.Attempt.PaymentMethodData = sealed
	activate(&data)
	return data, nil
}

func (o *authorizeOp) Domain(ctx context.Context, data PaymentData) (PaymentData, routing.ConnectorCallType, error) {
	mcaID := data.Request.MerchantConnectorID
	if mcaID == "" && data.Request.Recovery {
		meta, err := ParseFeatureMetadata(data.Intent.FeatureMetadata)
		if err != nil {
			return data, routing.ConnectorCallType{}, err
		}
		if meta.Recurring != nil {
			mcaID = meta.Recurring.MerchantConnectorID
		}
	}
	if mcaID != "" {
		mca, err := o.deps.Merchants.FindConnectorAccount(ctx, data.Merchant.ID(), mcaID)
		if err != nil {
			return data, routing.ConnectorCallType{}, err
		}
		if mca.Disabled {
			return data, routing.ConnectorCallType{}, pkgerrors.New(pkgerrors.CodeValidation, "merchant connector account is disabled")
		}
		bind(&data.Attempt, routing.Candidate{Connector: mca.ConnectorName, MerchantConnectorID: mca.MerchantConnectorID})
		return data, routing.PreDeterminedCall(mca.ConnectorName, mca.MerchantConnectorID), nil
	}
	if data.Attempt.Connector != nil && data.Attempt.MerchantConnectorID != nil {
		call, err := preDetermined(data)
		return data, call, err
	}
	if o.deps.Router == nil {
		return data, routing.ConnectorCallType{}, pkgerrors.New(pkgerrors.CodeValidation, "merchant_connector_id is required")
	}
	candidates, err := o.deps.Router.Candidates(ctx, data.Merchant.ID(), data.Intent.ProfileID, data.Intent.PaymentID)
	if err != nil {
		if errors.Is(err, routing.ErrNoEligibleConnector) {
			return data, routing.ConnectorCallType{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "no connector is configured for this profile")
		}
		return data, routing.ConnectorCallType{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "route payment")
	}
	call := routing.RetryableCall(candidates)
	bind(&data.Attempt, call.Connector)
	return data, call, nil
}

func (o *authorizeOp) UpdateTracker(ctx context.Context, data PaymentData) (PaymentData, error) {
	if data.Result != nil {
		applyAuthorizeResult(&data.Attempt, &data.Intent, *data.Result)
	}
	data.Intent.Status = IntentStatusForAttempt(data.Attempt.Status)
	activate(&data)
	return o.persist(ctx, data)
}

func applyAuthorizeResult(attempt *models.PaymentAttempt, intent *models.PaymentIntent, res connectors.Result) {
	if res.Failed() {
		applyError(attempt, res.Error, enums.AttemptStatusAuthorizationFailed)
		attempt.AmountCapturable = 0
		return
	}
	r := res.Response
	clearError(attempt)
	attempt.Status = r.Status
	if r.ConnectorTransactionID != "" {
		attempt.ConnectorTransactionID = optional(r.ConnectorTransactionID)
	}
	switch r.Status {
	case enums.AttemptStatusAuthorized:
		attempt.AmountCapturable = attempt.NetAmount
		if r.AmountCapturable > 0 {
			attempt.AmountCapturable = r.AmountCapturable
		}
	case enums.AttemptStatusCharged:
		captured := attempt.NetAmount
		if r.AmountCaptured > 0 {
			captured = r.AmountCaptured
		}
		attempt.AmountCapturable = 0
		intent.AmountCaptured = &captured
	}
}

// newAttempt builds the next attempt of intent. It is written by the stage
// that persists the aggregate.
func (d *Dependencies) newAttempt(intent models.PaymentIntent) models.PaymentAttempt {
	now := d.now()
	attempt := models.PaymentAttempt{
		AttemptID:     NewID("att"),
		PaymentID:     intent.PaymentID,
		MerchantID:    intent.MerchantID,
		Status:        enums.AttemptStatusStarted,
		NetAmount:     intent.Amount,
		Currency:      intent.Currency,
		AttemptCount:  intent.AttemptCount + 1,
		CaptureMethod: intent.CaptureMethod,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	if intent.CaptureMethod == enums.CaptureMethodManualMultiple {
		zero := 0
		attempt.MultipleCaptureCount = &zero
	}
	return attempt
}

// activate points the intent at the aggregate's attempt.
func activate(data *PaymentData) {
	id := data.Attempt.AttemptID
	data.Intent.ActiveAttemptID = &id
	if data.Attempt.AttemptCount > data.Intent.AttemptCount {
		data.Intent.AttemptCount = data.Attempt.AttemptCount
	}
}

func bind(attempt *models.PaymentAttempt, c routing.Candidate) {
	name, id := c.Connector, c.MerchantConnectorID
	attempt.Connector = &name
	attempt.MerchantConnectorID = &id
}
