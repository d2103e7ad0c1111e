package operations

import (
	"context"

	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

// approveOp releases a payment held for merchant review by capturing the
// full authorized amount.
type approveOp struct {
	base
}

func (o *approveOp) GetTracker(ctx context.Context, paymentID string, req Request, merchant Merchant) (PaymentData, error) {
	data, err := o.loadTracker(ctx, paymentID, req, merchant, approveAllowed)
	if err != nil {
		return PaymentData{}, err
	}
	if err := requireAttempt(data); err != nil {
		return PaymentData{}, err
	}
	amount := data.Attempt.NetAmount
	data.Attempt.AmountToCapture = &amount
	return data, nil
}

func (o *approveOp) Domain(_ context.Context, data PaymentData) (PaymentData, routing.ConnectorCallType, error) {
	call, err := preDetermined(data)
	return data, call, err
}

func (o *approveOp) UpdateTracker(ctx context.Context, data PaymentData) (PaymentData, error) {
	if data.Result != nil {
		applySingleCapture(&data, data.Attempt.NetAmount, enums.AttemptStatusFailure)
	}
	return o.persist(ctx, data)
}
