package operations

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

// attemptRecordOp stores an attempt made by an external billing system. It
// never calls a connector.
type attemptRecordOp struct {
	base
}

// LockAction also takes the recovery key, so an attempt is never recorded while
// a recovery task for the same payment is running.
func (o *attemptRecordOp) LockAction(paymentID string, req Request) locking.Action {
	payment := o.base.LockAction(paymentID, req).Inputs[0]
	recovery := RecoveryLockInput(paymentID)
	recovery.OverrideLockRetries = req.OverrideLockRetries
	return locking.HoldMultiple(payment, recovery)
}

func (o *attemptRecordOp) ValidateRequest(ctx context.Context, req Request, merchant Merchant) (ValidateResult, error) {
	res, err := o.base.ValidateRequest(ctx, req, merchant)
	if err != nil {
		return res, err
	}
	rec := req.Record
	switch {
	case rec == nil:
		return res, pkgerrors.New(pkgerrors.CodeValidation, "attempt record is required")
	case strings.TrimSpace(rec.Connector) == "":
		return res, pkgerrors.New(pkgerrors.CodeValidation, "connector is required")
	case !rec.Status.IsValid():
		return res, pkgerrors.New(pkgerrors.CodeValidation, "invalid attempt status")
	case rec.Amount < 0:
		return res, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	return res, nil
}

func (o *attemptRecordOp) GetTracker(ctx context.Context, paymentID string, req Request, merchant Merchant) (PaymentData, error) {
	data, err := o.loadTracker(ctx, paymentID, req, merchant, attemptRecordAllowed)
	if err != nil {
		return PaymentData{}, err
	}
	rec := req.Record
	attempt := o.deps.newAttempt(data.Intent)
	attempt.Status = rec.Status
	if rec.Amount > 0 {
		attempt.NetAmount = rec.Amount
	}
	attempt.Connector = optional(strings.ToLower(strings.TrimSpace(rec.Connector)))
	attempt.MerchantConnectorID = optional(rec.MerchantConnectorID)
	attempt.ConnectorTransactionID = optional(rec.ConnectorTransactionID)
	attempt.ErrorCode = optional(rec.ErrorCode)
	attempt.ErrorMessage = optional(rec.ErrorMessage)
	if attempt.Status == enums.AttemptStatusAuthorized {
		attempt.AmountCapturable = attempt.NetAmount
	}
	data.Attempt = attempt
	data.NewAttempt = true
	activate(&data)
	return data, nil
}

func (o *attemptRecordOp) Domain(_ context.Context, data PaymentData) (PaymentData, routing.ConnectorCallType, error) {
	return data, routing.SkipCall(), nil
}

func (o *attemptRecordOp) UpdateTracker(ctx context.Context, data PaymentData) (PaymentData, error) {
	data.Intent.Status = IntentStatusForAttempt(data.Attempt.Status)
	if data.Attempt.Status == enums.AttemptStatusCharged {
		captured := data.Attempt.NetAmount
		data.Intent.AmountCaptured = &captured
	}
	return o.persistWith(ctx, data, o.enroll)
}

// enroll hands a failed intent to passive recovery in the persist transaction,
// so a stored failure is never left without its recovery tracker.
func (o *attemptRecordOp) enroll(ctx context.Context, tx *gorm.DB, data *PaymentData) error {
	if o.deps.Recovery == nil || data.Intent.Status != enums.IntentStatusFailed {
		return nil
	}
	inserted, err := o.deps.Recovery.EnrollTx(ctx, tx, data.Intent)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "schedule payment recovery")
	}
	data.RecoveryScheduled = &inserted
	return nil
}
