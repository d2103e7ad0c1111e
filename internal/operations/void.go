package operations

import (
	"context"

	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

type voidOp struct {
	base
}

func (o *voidOp) GetTracker(ctx context.Context, paymentID string, req Request, merchant Merchant) (PaymentData, error) {
	data, err := o.loadTracker(ctx, paymentID, req, merchant, voidAllowed)
	if err != nil {
		return PaymentData{}, err
	}
	if err := requireAttempt(data); err != nil {
		return PaymentData{}, err
	}
	return data, nil
}

func (o *voidOp) Domain(_ context.Context, data PaymentData) (PaymentData, routing.ConnectorCallType, error) {
	call, err := preDetermined(data)
	return data, call, err
}

func (o *voidOp) UpdateTracker(ctx context.Context, data PaymentData) (PaymentData, error) {
	if data.Result != nil {
		res := *data.Result
		if res.Failed() {
			applyError(&data.Attempt, res.Error, enums.AttemptStatusVoidFailed)
		} else {
			clearError(&data.Attempt)
			data.Attempt.Status = res.Response.Status
			if data.Attempt.Status == enums.AttemptStatusVoided {
				data.Attempt.AmountCapturable = 0
			}
		}
		data.Intent.Status = IntentStatusForAttempt(data.Attempt.Status)
	}
	return o.persist(ctx, data)
}
