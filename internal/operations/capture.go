package operations

import (
	"context"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/multicapture"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

type captureOp struct {
	base
}

func (o *captureOp) ValidateRequest(ctx context.Context, req Request, merchant Merchant) (ValidateResult, error) {
	res, err := o.base.ValidateRequest(ctx, req, merchant)
	if err != nil {
		return res, err
	}
	if req.AmountToCapture != nil && *req.AmountToCapture <= 0 {
		return res, pkgerrors.New(pkgerrors.CodeValidation, "amount_to_capture must be greater than zero")
	}
	return res, nil
}

func (o *captureOp) GetTracker(ctx context.Context, paymentID string, req Request, merchant Merchant) (PaymentData, error) {
	data, err := o.loadTracker(ctx, paymentID, req, merchant, captureAllowed)
	if err != nil {
		return PaymentData{}, err
	}
	if err := requireAttempt(data); err != nil {
		return PaymentData{}, err
	}

	capturable := data.Attempt.AmountCapturable
	amount := capturable
	if req.AmountToCapture != nil {
		amount = *req.AmountToCapture
	}
	if amount > capturable {
		return PaymentData{}, pkgerrors.New(pkgerrors.CodeValidation, "amount_to_capture is greater than amount_capturable").
			WithDetails(map[string]any{"amount_to_capture": amount, "amount_capturable": capturable})
	}

	if data.Intent.CaptureMethod != enums.CaptureMethodManualMultiple {
		data.Attempt.AmountToCapture = &amount
		return data, nil
	}

	existing, err := o.deps.Captures.ListByAttempt(ctx, merchant.ID(), data.Attempt.AttemptID)
	if err != nil {
		return PaymentData{}, err
	}
	now := o.deps.now()
	capture := models.Capture{
		CaptureID:       NewID("cap"),
		PaymentID:       data.Intent.PaymentID,
		AttemptID:       data.Attempt.AttemptID,
		MerchantID:      merchant.ID(),
		Status:          enums.CaptureStatusStarted,
		Amount:          amount,
		Currency:        data.Attempt.Currency,
		Connector:       data.ConnectorName(),
		CaptureSequence: len(existing) + 1,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
	mc, err := multicapture.New(append(existing, capture))
	if err != nil {
		return PaymentData{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load captures")
	}
	data.Captures = mc
	data.Capture = &capture
	return data, nil
}

func (o *captureOp) Domain(_ context.Context, data PaymentData) (PaymentData, routing.ConnectorCallType, error) {
	call, err := preDetermined(data)
	return data, call, err
}

func (o *captureOp) UpdateTracker(ctx context.Context, data PaymentData) (PaymentData, error) {
	if data.Result == nil {
		return o.persist(ctx, data)
	}
	if data.Capture != nil {
		applyMultiCapture(&data)
	} else {
		applySingleCapture(&data, deref64(data.Attempt.AmountToCapture, data.Attempt.NetAmount), enums.AttemptStatusCaptureFailed)
	}
	return o.persist(ctx, data)
}

// applySingleCapture settles a one-shot capture of amount.
func applySingleCapture(data *PaymentData, amount int64, failure enums.AttemptStatus) {
	res := *data.Result
	if res.Failed() {
		applyError(&data.Attempt, res.Error, failure)
		data.Intent.Status = IntentStatusForAttempt(data.Attempt.Status)
		return
	}
	r := res.Response
	clearError(&data.Attempt)
	if r.ConnectorTransactionID != "" {
		data.Attempt.ConnectorTransactionID = optional(r.ConnectorTransactionID)
	}
	switch r.Status {
	case enums.AttemptStatusCharged, enums.AttemptStatusPartialCharged, enums.AttemptStatusPartialChargedAndChargeable:
		captured := amount
		if r.AmountCaptured > 0 {
			captured = r.AmountCaptured
		}
		data.Attempt.Status = enums.AttemptStatusCharged
		if captured < data.Attempt.NetAmount {
			data.Attempt.Status = enums.AttemptStatusPartialCharged
		}
		data.Attempt.AmountCapturable = 0
		data.Intent.AmountCaptured = &captured
	case enums.AttemptStatusPending, enums.AttemptStatusCaptureInitiated:
		data.Attempt.Status = enums.AttemptStatusCaptureInitiated
	default:
		data.Attempt.Status = r.Status
	}
	data.Intent.Status = IntentStatusForAttempt(data.Attempt.Status)
}

// applyMultiCapture settles the staged capture and re-derives the attempt and
// intent from the whole capture set. A failed capture with nothing charged or
// pending leaves both statuses as they were so the payment stays capturable.
func applyMultiCapture(data *PaymentData) {
	res := *data.Result
	capture := *data.Capture
	if res.Failed() {
		capture.Status = enums.CaptureStatusFailed
		capture.ErrorCode = optional(res.Error.Code)
		capture.ErrorMessage = optional(res.Error.Message)
	} else {
		r := res.Response
		capture.Status = captureStatusFor(r.Status)
		if r.ConnectorCaptureID != "" {
			capture.ConnectorCaptureID = optional(r.ConnectorCaptureID)
		}
	}
	data.Capture = &capture
	data.Captures.Update(capture)
	rederiveFromCaptures(data)
}

// syncPendingCaptures applies a connector sync to the captures still in
// flight. A response naming a capture settles that capture; a fully charged
// attempt settles all of them. It reports whether any capture changed.
func syncPendingCaptures(data *PaymentData, r *connectors.Response) bool {
	pending := data.Captures.PendingCaptures()
	if len(pending) == 0 {
		return false
	}
	changed := false
	if r.ConnectorCaptureID != "" {
		c, ok := data.Captures.CaptureByConnectorID(r.ConnectorCaptureID)
		if ok && c.Status == enums.CaptureStatusPending {
			if status := captureStatusFor(r.Status); status != c.Status {
				c.Status = status
				data.Captures.Update(c)
				changed = true
			}
		}
	} else if r.Status == enums.AttemptStatusCharged {
		for _, c := range pending {
			c.Status = enums.CaptureStatusCharged
			data.Captures.Update(c)
			changed = true
		}
	}
	if changed {
		rederiveFromCaptures(data)
	}
	return changed
}

func captureStatusFor(status enums.AttemptStatus) enums.CaptureStatus {
	switch status {
	case enums.AttemptStatusCharged, enums.AttemptStatusPartialCharged, enums.AttemptStatusPartialChargedAndChargeable:
		return enums.CaptureStatusCharged
	case enums.AttemptStatusCaptureFailed, enums.AttemptStatusFailure:
		return enums.CaptureStatusFailed
	default:
		return enums.CaptureStatusPending
	}
}

func rederiveFromCaptures(data *PaymentData) {
	count := data.Captures.Len()
	data.Attempt.MultipleCaptureCount = &count
	blocked := data.Captures.TotalBlockedAmount()
	charged := data.Captures.TotalChargedAmount()
	data.Attempt.AmountCapturable = data.Attempt.NetAmount - blocked
	data.Intent.AmountCaptured = &charged
	if blocked == 0 {
		return
	}
	data.Attempt.Status = data.Captures.AttemptStatus(data.Attempt.NetAmount)
	data.Intent.Status = multicapture.IntentStatus(data.Attempt.Status)
}

func deref64(v *int64, fallback int64) int64 {
	if v == nil {
		return fallback
	}
	return *v
}
