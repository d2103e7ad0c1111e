package pcr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
)

// Executor runs payment flows; *operations.Pipeline satisfies it.
type Executor interface {
	LoadMerchant(ctx context.Context, merchantID, profileID string) (operations.Merchant, error)
	Run(ctx context.Context, flow enums.PaymentFlow, paymentID string, req operations.Request, merchant operations.Merchant) (operations.PaymentData, error)
}

type Payments interface {
	FindIntent(ctx context.Context, merchantID, paymentID string) (*models.PaymentIntent, error)
	FindAttempt(ctx context.Context, merchantID, attemptID string) (*models.PaymentAttempt, error)
}

// TrackingData is stored on every recovery tracker.
type TrackingData struct {
	PaymentID       string  `json:"payment_id"`
	MerchantID      string  `json:"merchant_id"`
	ProfileID       string  `json:"profile_id"`
	AttemptID       *string `json:"attempt_id,omitempty"`
	CalledConnector bool    `json:"called_connector"`
	// QueuedAttemptCount is the intent's attempt count when the execute task
	// was queued. A higher stored count means the task already reached the
	// connector on an earlier delivery.
	QueuedAttemptCount int `json:"queued_attempt_count"`
}

var openStatuses = []enums.ProcessTrackerStatus{
	enums.ProcessTrackerStatusNew,
	enums.ProcessTrackerStatusPending,
	enums.ProcessTrackerStatusProcessStarted,
}

type WorkflowParams struct {
	Trackers *storage.ProcessTrackerRepository
	Payments Payments
	Executor Executor
	Webhooks *webhooks.Emitter
	Curves   *CurveLoader
	// Locks is optional. When set, each task holds the payment's recovery
	// lock, which attempt recording also takes.
	Locks    Locker
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
	Now      func() time.Time
}

// Locker is satisfied by *locking.Manager.
type Locker interface {
	Acquire(ctx context.Context, action locking.Action, merchantID, requestID string) (*locking.Lease, error)
}

// Workflow owns the recovery trackers. Every handler recomputes its decision
// from persisted state, so a task that runs twice converges on the same rows.
type Workflow struct {
	trackers *storage.ProcessTrackerRepository
	payments Payments
	executor Executor
	webhooks *webhooks.Emitter
	curves   *CurveLoader
	locks    Locker
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
	now      func() time.Time
}

func NewWorkflow(params WorkflowParams) (*Workflow, error) {
	switch {
	case params.Trackers == nil:
		return nil, errors.New("process tracker repository required")
	case params.Payments == nil:
		return nil, errors.New("payment repository required")
	case params.Executor == nil:
		return nil, errors.New("executor required")
	case params.Webhooks == nil:
		return nil, errors.New("webhook emitter required")
	case params.Curves == nil:
		return nil, errors.New("retry curve loader required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Workflow{
		trackers: params.Trackers,
		payments: params.Payments,
		executor: params.Executor,
		webhooks: params.Webhooks,
		curves:   params.Curves,
		locks:    params.Locks,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      func() time.Time { return now().UTC() },
	}, nil
}

// EnrollTx starts recovery for a failed intent that carries a stored mandate,
// writing the execute tracker with tx, the transaction that stores the intent.
// It reports false when the intent is not recoverable or is already tracked.
func (w *Workflow) EnrollTx(ctx context.Context, tx *gorm.DB, intent models.PaymentIntent) (bool, error) {
	if intent.Status != enums.IntentStatusFailed {
		return false, nil
	}
	meta, err := operations.ParseFeatureMetadata(intent.FeatureMetadata)
	if err != nil {
		return false, err
	}
	if meta.Recurring == nil {
		return false, nil
	}
	curve, err := w.curves.Load(ctx, intent.MerchantID)
	if err != nil {
		return false, err
	}
	td, err := json.Marshal(queuedTracking(intent))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode tracking data")
	}
	tracker := &models.ProcessTracker{
		ID:             TrackerID(ExecuteWorkflow, intent.PaymentID),
		Name:           ExecuteWorkflow,
		Tag:            []string{"PCR", intent.MerchantID},
		Runner:         Runner,
		ScheduleTime:   curve.NextScheduleTime(w.now(), 0),
		TrackingData:   td,
		BusinessStatus: BusinessStatusPending,
		Status:         enums.ProcessTrackerStatusNew,
	}
	_, inserted, err := w.trackers.WithTx(tx).InsertIfAbsent(ctx, tracker)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert recovery tracker")
	}
	if inserted {
		w.logg.Info(w.logg.WithFields(ctx, map[string]any{
			"event":      "pcr_scheduled",
			"payment_id": intent.PaymentID,
			"tracker_id": tracker.ID,
		}), "payment recovery scheduled")
	}
	return inserted, nil
}

// Process is the scheduler entry point for the recovery runner. It works on
// the stored row, so a redelivered task for a closed tracker is a no-op.
func (w *Workflow) Process(ctx context.Context, delivered models.ProcessTracker) error {
	stored, err := w.trackers.Find(ctx, delivered.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recovery tracker")
	}
	if stored == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("recovery tracker %q not found", delivered.ID))
	}
	tracker := *stored
	if !isOpen(tracker.Status) {
		w.logg.Info(w.logg.WithFields(ctx, map[string]any{
			"tracker_id": tracker.ID,
			"status":     tracker.Status.String(),
		}), "recovery tracker already closed")
		return nil
	}
	td, err := decodeTracking(tracker)
	if err != nil {
		return err
	}
	ctx = w.logg.WithFields(ctx, map[string]any{
		"tracker_id":  tracker.ID,
		"task":        tracker.Name,
		"payment_id":  td.PaymentID,
		"merchant_id": td.MerchantID,
	})
	if w.locks != nil {
		owner := fmt.Sprintf("%s_%d", tracker.ID, w.now().UnixNano())
		lease, err := w.locks.Acquire(ctx, locking.Hold(operations.RecoveryLockInput(td.PaymentID)), td.MerchantID, owner)
		if err != nil {
			return err
		}
		defer func() {
			if rerr := lease.Release(ctx); rerr != nil {
				w.logg.Error(ctx, "release recovery lock", rerr)
			}
		}()
	}
	switch tracker.Name {
	case ExecuteWorkflow:
		return w.execute(ctx, tracker, td)
	case PsyncWorkflow:
		return w.psync(ctx, tracker, td)
	case ReviewWorkflow:
		return w.review(ctx, tracker, BusinessStatusReviewPending)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown recovery task %q", tracker.Name))
	}
}

func (w *Workflow) execute(ctx context.Context, tracker models.ProcessTracker, td TrackingData) error {
	intent, err := w.payments.FindIntent(ctx, td.MerchantID, td.PaymentID)
	if err != nil {
		return err
	}
	if calledBefore(td, *intent) {
		attempt, err := w.payments.FindAttempt(ctx, td.MerchantID, *intent.ActiveAttemptID)
		if err != nil {
			return err
		}
		w.logg.Warn(w.logg.WithField(ctx, "attempt_id", attempt.AttemptID), "recovery task redelivered after connector call")
		td.AttemptID = &attempt.AttemptID
		td.CalledConnector = true
		return w.settleExecute(ctx, tracker, td, *intent, *attempt)
	}
	decision := DecideTask(intent.Status, td.CalledConnector, td.AttemptID)
	switch decision.Kind {
	case ExecuteTask:
		merchant, err := w.executor.LoadMerchant(ctx, td.MerchantID, td.ProfileID)
		if err != nil {
			return err
		}
		data, err := w.executor.Run(ctx, enums.PaymentFlowAuthorize, td.PaymentID, operations.Request{
			MerchantID: td.MerchantID,
			Recovery:   true,
		}, merchant)
		if err != nil {
			return err
		}
		attemptID := data.Attempt.AttemptID
		td.AttemptID = &attemptID
		td.CalledConnector = true
		return w.settleExecute(ctx, tracker, td, data.Intent, data.Attempt)
	case PsyncTask:
		w.metrics.IncPCRAction(ExecuteWorkflow, SyncPayment.String())
		return w.handoffToPsync(ctx, tracker, td, decision.AttemptID)
	default:
		w.metrics.IncPCRAction(ExecuteWorkflow, ReviewPayment.String())
		return w.review(ctx, tracker, BusinessStatusReviewPending)
	}
}

func (w *Workflow) settleExecute(ctx context.Context, tracker models.ProcessTracker, td TrackingData, intent models.PaymentIntent, attempt models.PaymentAttempt) error {
	class := ClassifyAttempt(attempt.Status)
	var next *time.Time
	if class == AttemptFailed {
		curve, err := w.curves.Load(ctx, td.MerchantID)
		if err != nil {
			return err
		}
		next = curve.NextScheduleTime(w.now(), tracker.RetryCount+1)
	}
	action := DecideAction(class, next)
	w.metrics.IncPCRAction(ExecuteWorkflow, action.Kind.String())
	w.logg.Info(w.logg.WithFields(ctx, map[string]any{
		"attempt_id":     attempt.AttemptID,
		"attempt_status": attempt.Status.String(),
		"action":         action.Kind.String(),
	}), "recovery attempt settled")

	switch action.Kind {
	case SuccessfulPayment:
		return w.complete(ctx, tracker.ID, td, intent, attempt)
	case RetryPayment:
		return w.reschedule(ctx, w.trackers, tracker.ID, openStatuses, tracker.RetryCount+1, *action.RetryAt, queuedTracking(intent))
	case TerminalFailure:
		return w.fail(ctx, tracker.ID, td, intent, attempt)
	case SyncPayment:
		return w.handoffToPsync(ctx, tracker, td, attempt.AttemptID)
	default:
		return w.review(ctx, tracker, BusinessStatusPending)
	}
}

func (w *Workflow) psync(ctx context.Context, tracker models.ProcessTracker, td TrackingData) error {
	if td.AttemptID == nil {
		return w.review(ctx, tracker, BusinessStatusPending)
	}
	merchant, err := w.executor.LoadMerchant(ctx, td.MerchantID, td.ProfileID)
	if err != nil {
		return err
	}
	var (
		intent  models.PaymentIntent
		attempt models.PaymentAttempt
	)
	data, err := w.executor.Run(ctx, enums.PaymentFlowPSync, td.PaymentID, operations.Request{MerchantID: td.MerchantID}, merchant)
	switch {
	case err == nil:
		intent, attempt = data.Intent, data.Attempt
	case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
		// Already terminal; settle from what is stored.
		i, err := w.payments.FindIntent(ctx, td.MerchantID, td.PaymentID)
		if err != nil {
			return err
		}
		a, err := w.payments.FindAttempt(ctx, td.MerchantID, *td.AttemptID)
		if err != nil {
			return err
		}
		intent, attempt = *i, *a
	default:
		return err
	}

	class := ClassifyAttempt(attempt.Status)
	execID := TrackerID(ExecuteWorkflow, td.PaymentID)
	var next *time.Time
	switch class {
	case AttemptFailed:
		exec, err := w.trackers.Find(ctx, execID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load execute tracker")
		}
		retries := 0
		if exec != nil {
			retries = exec.RetryCount
		}
		curve, err := w.curves.Load(ctx, td.MerchantID)
		if err != nil {
			return err
		}
		next = curve.NextScheduleTime(w.now(), retries+1)
		action := DecideAction(class, next)
		w.metrics.IncPCRAction(PsyncWorkflow, action.Kind.String())
		if action.Kind == TerminalFailure {
			return w.fail(ctx, tracker.ID, td, intent, attempt)
		}
		return w.trackers.Transaction(ctx, func(_ *gorm.DB, txRepo *storage.ProcessTrackerRepository) error {
			if err := w.finish(ctx, txRepo, tracker.ID, BusinessStatusPsyncComplete, nil); err != nil {
				return err
			}
			return w.reschedule(ctx, txRepo, execID, nil, retries+1, *action.RetryAt, queuedTracking(intent))
		})
	case AttemptProcessing:
		curve, err := w.curves.Load(ctx, td.MerchantID)
		if err != nil {
			return err
		}
		next = curve.NextScheduleTime(w.now(), tracker.RetryCount+1)
		if next == nil {
			w.metrics.IncPCRAction(PsyncWorkflow, ReviewPayment.String())
			return w.review(ctx, tracker, BusinessStatusReviewPending)
		}
		w.metrics.IncPCRAction(PsyncWorkflow, SyncPayment.String())
		return w.reschedule(ctx, w.trackers, tracker.ID, openStatuses, tracker.RetryCount+1, *next, td)
	}

	action := DecideAction(class, nil)
	w.metrics.IncPCRAction(PsyncWorkflow, action.Kind.String())
	if action.Kind == SuccessfulPayment {
		return w.complete(ctx, tracker.ID, td, intent, attempt)
	}
	return w.review(ctx, tracker, BusinessStatusPending)
}

// handoffToPsync closes the execute tracker and creates, or reuses, the psync
// tracker for attemptID.
func (w *Workflow) handoffToPsync(ctx context.Context, tracker models.ProcessTracker, td TrackingData, attemptID string) error {
	td.AttemptID = &attemptID
	td.CalledConnector = true
	raw, err := json.Marshal(td)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode tracking data")
	}
	now := w.now()
	return w.trackers.Transaction(ctx, func(_ *gorm.DB, txRepo *storage.ProcessTrackerRepository) error {
		if err := w.finish(ctx, txRepo, tracker.ID, BusinessStatusExecuteCompleteForPsync, raw); err != nil {
			return err
		}
		_, _, err := txRepo.InsertIfAbsent(ctx, &models.ProcessTracker{
			ID:             TrackerID(PsyncWorkflow, attemptID),
			Name:           PsyncWorkflow,
			Tag:            []string{"PCR", td.MerchantID},
			Runner:         Runner,
			ScheduleTime:   &now,
			TrackingData:   raw,
			BusinessStatus: BusinessStatusPending,
			Status:         enums.ProcessTrackerStatusNew,
		})
		return err
	})
}

// complete finishes both trackers and queues payment_succeeded.
func (w *Workflow) complete(ctx context.Context, currentID string, td TrackingData, intent models.PaymentIntent, attempt models.PaymentAttempt) error {
	return w.trackers.Transaction(ctx, func(tx *gorm.DB, txRepo *storage.ProcessTrackerRepository) error {
		execID := TrackerID(ExecuteWorkflow, td.PaymentID)
		if err := w.finishAny(ctx, txRepo, execID, BusinessStatusExecuteComplete); err != nil {
			return err
		}
		if td.AttemptID != nil {
			if err := w.finishAny(ctx, txRepo, TrackerID(PsyncWorkflow, *td.AttemptID), BusinessStatusPsyncComplete); err != nil {
				return err
			}
		}
		if currentID != execID {
			if err := w.finish(ctx, txRepo, currentID, BusinessStatusPsyncComplete, nil); err != nil {
				return err
			}
		}
		return w.webhooks.Emit(ctx, tx, enums.EventPaymentSucceeded, intent, &attempt)
	})
}

// fail closes recovery for good and queues payment_failed.
func (w *Workflow) fail(ctx context.Context, currentID string, td TrackingData, intent models.PaymentIntent, attempt models.PaymentAttempt) error {
	return w.trackers.Transaction(ctx, func(tx *gorm.DB, txRepo *storage.ProcessTrackerRepository) error {
		execID := TrackerID(ExecuteWorkflow, td.PaymentID)
		if err := w.finishAny(ctx, txRepo, execID, BusinessStatusExecuteFailure); err != nil {
			return err
		}
		if currentID != execID {
			if err := w.finish(ctx, txRepo, currentID, BusinessStatusPsyncComplete, nil); err != nil {
				return err
			}
		}
		return w.webhooks.Emit(ctx, tx, enums.EventPaymentFailed, intent, &attempt)
	})
}

func (w *Workflow) review(ctx context.Context, tracker models.ProcessTracker, businessStatus string) error {
	status := enums.ProcessTrackerStatusReview
	_, err := w.trackers.Update(ctx, tracker.ID, openStatuses, storage.TrackerUpdate{
		Status:         &status,
		BusinessStatus: &businessStatus,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "move tracker to review")
	}
	w.logg.Warn(w.logg.WithField(ctx, "business_status", businessStatus), "recovery tracker moved to review")
	return nil
}

func (w *Workflow) reschedule(ctx context.Context, repo *storage.ProcessTrackerRepository, id string, from []enums.ProcessTrackerStatus, retryCount int, at time.Time, td TrackingData) error {
	raw, err := json.Marshal(td)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode tracking data")
	}
	status := enums.ProcessTrackerStatusPending
	business := BusinessStatusPending
	_, err = repo.Update(ctx, id, from, storage.TrackerUpdate{
		Status:         &status,
		BusinessStatus: &business,
		RetryCount:     &retryCount,
		ScheduleTime:   &at,
		TrackingData:   raw,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reschedule tracker")
	}
	return nil
}

// finish moves an open tracker to Finish; a tracker another run already
// closed is left alone.
func (w *Workflow) finish(ctx context.Context, repo *storage.ProcessTrackerRepository, id, businessStatus string, trackingData []byte) error {
	status := enums.ProcessTrackerStatusFinish
	_, err := repo.Update(ctx, id, openStatuses, storage.TrackerUpdate{
		Status:         &status,
		BusinessStatus: &businessStatus,
		TrackingData:   trackingData,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finish tracker")
	}
	return nil
}

// finishAny stamps the final business status whatever the tracker's state.
func (w *Workflow) finishAny(ctx context.Context, repo *storage.ProcessTrackerRepository, id, businessStatus string) error {
	status := enums.ProcessTrackerStatusFinish
	_, err := repo.Update(ctx, id, nil, storage.TrackerUpdate{
		Status:         &status,
		BusinessStatus: &businessStatus,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finish tracker")
	}
	return nil
}

// queuedTracking is the tracking data of an execute task queued for intent.
func queuedTracking(intent models.PaymentIntent) TrackingData {
	return TrackingData{
		PaymentID:          intent.PaymentID,
		MerchantID:         intent.MerchantID,
		ProfileID:          intent.ProfileID,
		QueuedAttemptCount: intent.AttemptCount,
	}
}

// calledBefore reports whether the stored intent moved past the attempt count
// the execute task was queued with, i.e. an earlier delivery authorized and
// then failed to settle the tracker.
func calledBefore(td TrackingData, intent models.PaymentIntent) bool {
	return !td.CalledConnector && intent.ActiveAttemptID != nil && intent.AttemptCount > td.QueuedAttemptCount
}

func isOpen(status enums.ProcessTrackerStatus) bool {
	for _, s := range openStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func decodeTracking(tracker models.ProcessTracker) (TrackingData, error) {
	var td TrackingData
	if err := json.Unmarshal(tracker.TrackingData, &td); err != nil {
		return td, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode tracking data")
	}
	if td.PaymentID == "" || td.MerchantID == "" {
		return td, pkgerrors.New(pkgerrors.CodeValidation, "tracking data missing payment or merchant")
	}
	return td, nil
}
