package operations

import (
	"context"

	"github.com/juspay/hyperswitch-sub035/internal/multicapture"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

// psyncOp asks the connector for the latest status of the active attempt.
type psyncOp struct {
	base
}

func (o *psyncOp) GetTracker(ctx context.Context, paymentID string, req Request, merchant Merchant) (PaymentData, error) {
	data, err := o.loadTracker(ctx, paymentID, req, merchant, psyncAllowed)
	if err != nil {
		return PaymentData{}, err
	}
	if err := requireAttempt(data); err != nil {
		return PaymentData{}, err
	}
	if data.Intent.CaptureMethod != enums.CaptureMethodManualMultiple {
		return data, nil
	}
	captures, err := o.deps.Captures.ListByAttempt(ctx, merchant.ID(), data.Attempt.AttemptID)
	if err != nil {
		return PaymentData{}, err
	}
	if len(captures) > 0 {
		if data.Captures, err = multicapture.New(captures); err != nil {
			return PaymentData{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load captures")
		}
	}
	return data, nil
}

func (o *psyncOp) Domain(_ context.Context, data PaymentData) (PaymentData, routing.ConnectorCallType, error) {
	if data.Attempt.Connector == nil || data.Attempt.ConnectorTransactionID == nil {
		return data, routing.SkipCall(), nil
	}
	call, err := preDetermined(data)
	return data, call, err
}

// UpdateTracker only moves state forward on a successful sync. A failed sync
// leaves the payment as it was.
func (o *psyncOp) UpdateTracker(ctx context.Context, data PaymentData) (PaymentData, error) {
	if data.Result == nil {
		return data, nil
	}
	if data.Result.Failed() {
		o.deps.Logger.Warn(o.deps.Logger.WithFields(ctx, map[string]any{
			"connector":  data.Result.Connector,
			"error_code": data.Result.Error.Code,
		}), "payment sync failed")
		return data, nil
	}
	r := data.Result.Response
	if data.Captures != nil {
		if !syncPendingCaptures(&data, r) {
			return data, nil
		}
		return o.persist(ctx, data)
	}
	if r.Status == data.Attempt.Status {
		return data, nil
	}
	data.Attempt.Status = r.Status
	switch r.Status {
	case enums.AttemptStatusCharged:
		captured := data.Attempt.NetAmount
		if r.AmountCaptured > 0 {
			captured = r.AmountCaptured
		}
		data.Intent.AmountCaptured = &captured
		data.Attempt.AmountCapturable = 0
	case enums.AttemptStatusAuthorized:
		data.Attempt.AmountCapturable = data.Attempt.NetAmount
	}
	data.Intent.Status = IntentStatusForAttempt(data.Attempt.Status)
	return o.persist(ctx, data)
}
