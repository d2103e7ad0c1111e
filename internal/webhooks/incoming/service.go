// Package incoming applies connector-originated payment notifications by
// re-syncing the referenced payment with its connector.
package incoming

import (
	"context"

	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

// Executor runs payment flows; *operations.Pipeline satisfies it.
type Executor interface {
	LoadMerchant(ctx context.Context, merchantID, profileID string) (operations.Merchant, error)
	Run(ctx context.Context, flow enums.PaymentFlow, paymentID string, req operations.Request, merchant operations.Merchant) (operations.PaymentData, error)
}

type Payments interface {
	FindAttemptByConnectorTransaction(ctx context.Context, connector, transactionID string) (*models.PaymentAttempt, error)
	FindIntent(ctx context.Context, merchantID, paymentID string) (*models.PaymentIntent, error)
}

// Locker is satisfied by *locking.Manager.
type Locker interface {
	Acquire(ctx context.Context, action locking.Action, merchantID, requestID string) (*locking.Lease, error)
}

type ServiceParams struct {
	Payments Payments
	Executor Executor
	Locks    Locker
	Logger   *logger.Logger
}

type Service struct {
	payments Payments
	executor Executor
	locks    Locker
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repository required")
	case params.Executor == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment executor required")
	case params.Locks == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "lock manager required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: params.Payments, executor: params.Executor, locks: params.Locks, logg: params.Logger}, nil
}

// Apply syncs the payment n refers to. Ingestion itself never holds a lock:
// unknown transactions are NotApplicable, payments already in a final state
// are dropped, and the rest are queued to a psync that takes the payment lock.
// All three acknowledge the connector.
func (s *Service) Apply(ctx context.Context, n Notification) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"connector":      n.Connector,
		"event_id":       n.EventID,
		"event_type":     n.EventType,
		"transaction_id": n.TransactionID,
	})
	requestID := "webhook_" + n.EventID

	attempt, err := s.payments.FindAttemptByConnectorTransaction(ctx, n.Connector, n.TransactionID)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return err
		}
		if err := s.ingest(ctx, locking.NotApplicable(), "", requestID); err != nil {
			return err
		}
		s.logg.Warn(ctx, "webhook references unknown connector transaction")
		return nil
	}
	intent, err := s.payments.FindIntent(ctx, attempt.MerchantID, attempt.PaymentID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithPaymentID(ctx, intent.PaymentID)
	if intent.Status.IsTerminal() {
		if err := s.ingest(ctx, locking.Drop(), intent.MerchantID, requestID); err != nil {
			return err
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"status": string(intent.Status)}), "webhook for settled payment dropped")
		return nil
	}
	if err := s.ingest(ctx, locking.QueueWithOk(), intent.MerchantID, requestID); err != nil {
		return err
	}

	merchant, err := s.executor.LoadMerchant(ctx, intent.MerchantID, intent.ProfileID)
	if err != nil {
		return err
	}
	req := operations.Request{MerchantID: merchant.ID(), RequestID: requestID}
	data, err := s.executor.Run(ctx, enums.PaymentFlowPSync, intent.PaymentID, req, merchant)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
			s.logg.Info(ctx, "webhook for payment outside syncable state ignored")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_id": data.Intent.PaymentID,
		"status":     string(data.Intent.Status),
	}), "payment synced from connector webhook")
	return nil
}

// ingest records the lock action chosen for one notification.
func (s *Service) ingest(ctx context.Context, action locking.Action, merchantID, requestID string) error {
	lease, err := s.locks.Acquire(ctx, action, merchantID, requestID)
	if err != nil {
		return err
	}
	return lease.Release(ctx)
}
