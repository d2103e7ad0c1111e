package operations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/security"
)

// LockAPIIdentifier scopes every payment flow to the same lock namespace so
// two flows on one payment never run together.
const LockAPIIdentifier = "payments"

// RecoveryLockAPIIdentifier scopes the lock a recovery task holds while it
// works on a payment.
const RecoveryLockAPIIdentifier = "payment_recovery"

func RecoveryLockInput(paymentID string) locking.Input {
	return locking.Input{UniqueLockingKey: paymentID, APIIdentifier: RecoveryLockAPIIdentifier}
}

// Operation is one payment flow. Each stage receives the aggregate returned by
// the previous one.
type Operation interface {
	Flow() enums.PaymentFlow
	LockAction(paymentID string, req Request) locking.Action
	ValidateRequest(ctx context.Context, req Request, merchant Merchant) (ValidateResult, error)
	GetTracker(ctx context.Context, paymentID string, req Request, merchant Merchant) (PaymentData, error)
	Domain(ctx context.Context, data PaymentData) (PaymentData, routing.ConnectorCallType, error)
	UpdateTracker(ctx context.Context, data PaymentData) (PaymentData, error)
}

// RecoveryEnroller queues passive recovery for a failed intent using the
// transaction that stores the intent.
type RecoveryEnroller interface {
	EnrollTx(ctx context.Context, tx *gorm.DB, intent models.PaymentIntent) (bool, error)
}

// Dependencies are the collaborators shared by every flow.
type Dependencies struct {
	Payments  *storage.PaymentRepository
	Captures  *storage.CaptureRepository
	Merchants *storage.MerchantRepository
	Router    *routing.Router
	Webhooks  *webhooks.Emitter
	Cipher    *security.Cipher
	Logger    *logger.Logger
	// Recovery is optional; without it recorded failures are not enrolled.
	Recovery RecoveryEnroller
	Now      func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dependencies) validate() error {
	switch {
	case d == nil:
		return fmt.Errorf("operation dependencies required")
	case d.Payments == nil:
		return fmt.Errorf("payment repository required")
	case d.Captures == nil:
		return fmt.Errorf("capture repository required")
	case d.Merchants == nil:
		return fmt.Errorf("merchant repository required")
	case d.Webhooks == nil:
		return fmt.Errorf("webhook emitter required")
	case d.Cipher == nil:
		return fmt.Errorf("pii cipher required")
	case d.Logger == nil:
		return fmt.Errorf("logger required")
	}
	return nil
}

// NewID returns a prefixed identifier such as pay_3f2c....
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Registry is the flow dispatch table built at start-up.
type Registry struct {
	ops map[enums.PaymentFlow]Operation
}

func NewRegistry(deps *Dependencies) (*Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	r := &Registry{ops: map[enums.PaymentFlow]Operation{}}
	for _, op := range []Operation{
		&authorizeOp{base{deps: deps, flow: enums.PaymentFlowAuthorize}},
		&captureOp{base{deps: deps, flow: enums.PaymentFlowCapture}},
		&voidOp{base{deps: deps, flow: enums.PaymentFlowVoid}},
		&approveOp{base{deps: deps, flow: enums.PaymentFlowApprove}},
		&attemptRecordOp{base{deps: deps, flow: enums.PaymentFlowAttemptRecord}},
		&psyncOp{base{deps: deps, flow: enums.PaymentFlowPSync}},
	} {
		r.ops[op.Flow()] = op
	}
	return r, nil
}

func (r *Registry) Get(flow enums.PaymentFlow) (Operation, error) {
	op, ok := r.ops[flow]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotImpl, fmt.Sprintf("flow %q is not supported", flow))
	}
	return op, nil
}

// base carries the parts every flow shares.
type base struct {
	deps *Dependencies
	flow enums.PaymentFlow
}

func (b base) Flow() enums.PaymentFlow {
	return b.flow
}

func (b base) LockAction(paymentID string, req Request) locking.Action {
	return locking.Hold(locking.Input{
		UniqueLockingKey:    paymentID,
		APIIdentifier:       LockAPIIdentifier,
		OverrideLockRetries: req.OverrideLockRetries,
	})
}

func (b base) ValidateRequest(_ context.Context, req Request, merchant Merchant) (ValidateResult, error) {
	if req.MerchantID != "" && req.MerchantID != merchant.ID() {
		return ValidateResult{}, pkgerrors.New(pkgerrors.CodeValidation, "merchant_id does not match the authenticated merchant")
	}
	return ValidateResult{
		MerchantID:    merchant.ID(),
		StorageScheme: merchant.Account.StorageScheme,
	}, nil
}

// loadTracker reads the intent, checks its status against allowed and loads
// the active attempt. Nothing is written before the guard passes.
func (b base) loadTracker(ctx context.Context, paymentID string, req Request, merchant Merchant, allowed []enums.IntentStatus) (PaymentData, error) {
	intent, err := b.deps.Payments.FindIntent(ctx, merchant.ID(), paymentID)
	if err != nil {
		return PaymentData{}, err
	}
	if err := ValidateStatusForOperation(b.flow, intent.Status, allowed); err != nil {
		return PaymentData{}, err
	}
	data := PaymentData{
		Flow:           b.flow,
		Merchant:       merchant,
		Request:        req,
		Intent:         *intent,
		PreviousStatus: intent.Status,
	}
	attempt, err := b.deps.Payments.FindActiveAttempt(ctx, intent)
	if err != nil {
		return PaymentData{}, err
	}
	if attempt != nil {
		data.Attempt = *attempt
	}
	return data, nil
}

// requireAttempt fails when the intent has no active attempt to act on.
func requireAttempt(data PaymentData) error {
	if data.Attempt.AttemptID == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no active attempt")
	}
	return nil
}

// merchantCipher opens the merchant's data key once per aggregate.
func (d *Dependencies) merchantCipher(data *PaymentData) (*security.Cipher, error) {
	if data.merchantCipher != nil {
		return data.merchantCipher, nil
	}
	c, err := d.Cipher.MerchantCipher(data.Merchant.KeyStore.Key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merchant key unavailable")
	}
	data.merchantCipher = c
	return c, nil
}

// preDetermined routes to the connector already bound to the attempt.
func preDetermined(data PaymentData) (routing.ConnectorCallType, error) {
	if data.Attempt.Connector == nil || data.Attempt.MerchantConnectorID == nil {
		return routing.ConnectorCallType{}, pkgerrors.New(pkgerrors.CodeStateConflict, "attempt has no bound connector")
	}
	return routing.PreDeterminedCall(*data.Attempt.Connector, *data.Attempt.MerchantConnectorID), nil
}

// persist writes attempt then intent, any capture rows and the webhook in one
// transaction.
func (b base) persist(ctx context.Context, data PaymentData) (PaymentData, error) {
	return b.persistWith(ctx, data, nil)
}

// persistWith is persist with extra writes that must commit with the intent.
func (b base) persistWith(ctx context.Context, data PaymentData, extra func(ctx context.Context, tx *gorm.DB, data *PaymentData) error) (PaymentData, error) {
	now := b.deps.now()
	data.Intent.UpdatedAt = now
	err := b.deps.Payments.Transaction(ctx, func(tx *gorm.DB, payments *storage.PaymentRepository) error {
		if data.Attempt.AttemptID != "" {
			data.Attempt.ModifiedAt = now
			if err := payments.UpsertAttempt(ctx, &data.Attempt); err != nil {
				return err
			}
		}
		if err := payments.UpdateIntent(ctx, &data.Intent); err != nil {
			return err
		}
		if extra != nil {
			if err := extra(ctx, tx, &data); err != nil {
				return err
			}
		}
		if data.Captures != nil {
			captures := b.deps.Captures.WithTx(tx)
			for _, c := range data.Captures.All() {
				c := c
				if err := captures.Upsert(ctx, &c); err != nil {
					return err
				}
			}
		}
		if data.Intent.Status == data.PreviousStatus {
			return nil
		}
		var attempt *models.PaymentAttempt
		if data.Attempt.AttemptID != "" {
			attempt = &data.Attempt
		}
		queued, err := b.deps.Webhooks.EmitPayment(ctx, tx, data.Intent, attempt)
		if err != nil {
			return err
		}
		data.WebhookQueued = queued
		return nil
	})
	if err != nil {
		return PaymentData{}, err
	}
	return data, nil
}

// applyError stamps a connector failure on the attempt.
func applyError(attempt *models.PaymentAttempt, e *connectors.ErrorResponse, fallback enums.AttemptStatus) {
	status := e.AttemptStatus
	if status == "" {
		status = fallback
	}
	attempt.Status = status
	attempt.ErrorCode = optional(e.Code)
	attempt.ErrorMessage = optional(e.Message)
	attempt.ErrorReason = optional(e.Reason)
	if e.ConnectorTransactionID != "" {
		attempt.ConnectorTransactionID = optional(e.ConnectorTransactionID)
	}
}

func clearError(attempt *models.PaymentAttempt) {
	attempt.ErrorCode = nil
	attempt.ErrorMessage = nil
	attempt.ErrorReason = nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
