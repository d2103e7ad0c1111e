package pcr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks"
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/outbox"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeExecutor settles each run with the next scripted attempt status and
// writes the result the way the pipeline would.
type fakeExecutor struct {
	payments *storage.PaymentRepository
	outcomes []enums.AttemptStatus
	calls    []enums.PaymentFlow
}

func (f *fakeExecutor) LoadMerchant(_ context.Context, merchantID, profileID string) (operations.Merchant, error) {
	return operations.Merchant{
		Account: models.MerchantAccount{MerchantID: merchantID},
		Profile: models.BusinessProfile{ProfileID: profileID, MerchantID: merchantID},
	}, nil
}

func (f *fakeExecutor) Run(ctx context.Context, flow enums.PaymentFlow, paymentID string, _ operations.Request, merchant operations.Merchant) (operations.PaymentData, error) {
	f.calls = append(f.calls, flow)
	status := f.outcomes[0]
	f.outcomes = f.outcomes[1:]

	intent, err := f.payments.FindIntent(ctx, merchant.ID(), paymentID)
	if err != nil {
		return operations.PaymentData{}, err
	}
	attemptID := fmt.Sprintf("att_%d", len(f.calls))
	if flow == enums.PaymentFlowPSync && intent.ActiveAttemptID != nil {
		attemptID = *intent.ActiveAttemptID
	}
	attempt := models.PaymentAttempt{
		AttemptID:    attemptID,
		PaymentID:    paymentID,
		MerchantID:   merchant.ID(),
		Status:       status,
		NetAmount:    intent.Amount,
		Currency:     intent.Currency,
		AttemptCount: intent.AttemptCount + 1,
	}
	if err := f.payments.UpsertAttempt(ctx, &attempt); err != nil {
		return operations.PaymentData{}, err
	}
	intent.Status = operations.IntentStatusForAttempt(status)
	intent.ActiveAttemptID = &attempt.AttemptID
	intent.AttemptCount = attempt.AttemptCount
	if err := f.payments.UpdateIntent(ctx, intent); err != nil {
		return operations.PaymentData{}, err
	}
	return operations.PaymentData{Flow: flow, Intent: *intent, Attempt: attempt}, nil
}

type fixture struct {
	client   *db.Client
	workflow *Workflow
	exec     *fakeExecutor
	trackers *storage.ProcessTrackerRepository
	configs  *storage.ConfigRepository
	payments *storage.PaymentRepository
}

func newFixture(t *testing.T, outcomes ...enums.AttemptStatus) *fixture {
	t.Helper()
	client, err := db.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)
	require.NoError(t, client.DB().AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = client.Close() })

	logg := logger.New(logger.Options{ServiceName: "pcr-test"})
	emitter, err := webhooks.NewEmitter(outbox.NewService(outbox.NewRepository(client), logg))
	require.NoError(t, err)

	f := &fixture{
		client:   client,
		trackers: storage.NewProcessTrackerRepository(client),
		configs:  storage.NewConfigRepository(client),
		payments: storage.NewPaymentRepository(client),
	}
	f.exec = &fakeExecutor{payments: f.payments, outcomes: outcomes}
	f.workflow, err = NewWorkflow(WorkflowParams{
		Trackers: f.trackers,
		Payments: f.payments,
		Executor: f.exec,
		Webhooks: emitter,
		Curves:   NewCurveLoader(f.configs, defaultCurve(t), logg),
		Logger:   logg,
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return f
}

// failedIntent seeds an intent whose external attempt failed and that carries
// a stored mandate.
func (f *fixture) failedIntent(t *testing.T) models.PaymentIntent {
	t.Helper()
	meta, err := operations.FeatureMetadata{Recurring: &operations.RecurringDetails{
		Connector:           "dummy",
		MerchantConnectorID: "mca_1",
		PaymentMethod:       &connectors.PaymentMethod{Type: "card", Token: "tok_success"},
	}}.JSON()
	require.NoError(t, err)
	intent := models.PaymentIntent{
		PaymentID: "pay_1", MerchantID: "m1", ProfileID: "p1", Amount: 2500, Currency: "USD",
		Status: enums.IntentStatusFailed, CaptureMethod: enums.CaptureMethodAutomatic,
		AttemptCount: 1, FeatureMetadata: meta,
	}
	require.NoError(t, f.payments.InsertIntent(context.Background(), &intent))
	return intent
}

func (f *fixture) enroll(t *testing.T, intent models.PaymentIntent) bool {
	t.Helper()
	var inserted bool
	require.NoError(t, f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		inserted, err = f.workflow.EnrollTx(context.Background(), tx, intent)
		return err
	}))
	return inserted
}

func (f *fixture) schedule(t *testing.T) models.ProcessTracker {
	t.Helper()
	require.True(t, f.enroll(t, f.failedIntent(t)))
	return f.tracker(t, TrackerID(ExecuteWorkflow, "pay_1"))
}

func (f *fixture) tracker(t *testing.T, id string) models.ProcessTracker {
	t.Helper()
	tracker, err := f.trackers.Find(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, tracker, id)
	return *tracker
}

func (f *fixture) eventTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EventType)
	}
	return out
}

func TestEnrollCreatesExecuteTrackerOnce(t *testing.T) {
	f := newFixture(t)
	intent := f.failedIntent(t)

	require.True(t, f.enroll(t, intent))
	tracker := f.tracker(t, TrackerID(ExecuteWorkflow, "pay_1"))
	assert.Equal(t, Runner, tracker.Runner)
	assert.Equal(t, enums.ProcessTrackerStatusNew, tracker.Status)
	require.NotNil(t, tracker.ScheduleTime)
	assert.WithinDuration(t, testNow.Add(time.Minute), *tracker.ScheduleTime, time.Second)

	var td TrackingData
	require.NoError(t, json.Unmarshal(tracker.TrackingData, &td))
	assert.Equal(t, 1, td.QueuedAttemptCount)

	assert.False(t, f.enroll(t, intent))

	intent.FeatureMetadata = nil
	assert.False(t, f.enroll(t, intent))
}

func TestEnrollLeavesNoTrackerWhenTransactionRollsBack(t *testing.T) {
	f := newFixture(t)
	intent := f.failedIntent(t)

	err := f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		inserted, err := f.workflow.EnrollTx(context.Background(), tx, intent)
		require.NoError(t, err)
		require.True(t, inserted)
		return errors.New("intent write failed")
	})
	require.Error(t, err)

	stored, err := f.trackers.Find(context.Background(), TrackerID(ExecuteWorkflow, "pay_1"))
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestExecuteFailedWithSlotReschedules(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusFailure)
	tracker := f.schedule(t)

	require.NoError(t, f.workflow.Process(context.Background(), tracker))

	got := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ScheduleTime)
	assert.WithinDuration(t, testNow.Add(5*time.Minute), *got.ScheduleTime, time.Second)

	var td TrackingData
	require.NoError(t, json.Unmarshal(got.TrackingData, &td))
	assert.False(t, td.CalledConnector)
	assert.Nil(t, td.AttemptID)
	assert.Equal(t, []enums.PaymentFlow{enums.PaymentFlowAuthorize}, f.exec.calls)
}

func TestExecuteTerminalFailureWhenCurveIsExhausted(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusAuthorizationFailed)
	require.NoError(t, f.configs.Upsert(context.Background(), RetryMappingKey("m1"), `{"start_after": 0, "frequencies": [[60, 1]]}`))
	tracker := f.schedule(t)
	retries := 1
	_, err := f.trackers.Update(context.Background(), tracker.ID, nil, storage.TrackerUpdate{RetryCount: &retries})
	require.NoError(t, err)

	require.NoError(t, f.workflow.Process(context.Background(), tracker))

	got := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusFinish, got.Status)
	assert.Equal(t, BusinessStatusExecuteFailure, got.BusinessStatus)
	assert.Contains(t, f.eventTypes(t), enums.EventPaymentFailed)
}

func TestExecuteSuccessIsIdempotent(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusCharged)
	tracker := f.schedule(t)
	ctx := context.Background()

	require.NoError(t, f.workflow.Process(ctx, tracker))
	got := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusFinish, got.Status)
	assert.Equal(t, BusinessStatusExecuteComplete, got.BusinessStatus)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentSucceeded}, f.eventTypes(t))

	// A duplicate delivery of the same task sees a succeeded intent and changes nothing.
	require.NoError(t, f.workflow.Process(ctx, tracker))
	again := f.tracker(t, tracker.ID)
	assert.Equal(t, got.Status, again.Status)
	assert.Equal(t, got.BusinessStatus, again.BusinessStatus)
	assert.Len(t, f.exec.calls, 1)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentSucceeded}, f.eventTypes(t))
}

func TestProcessingHandsOffToPsyncThenCompletes(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusPending, enums.AttemptStatusCharged)
	tracker := f.schedule(t)
	ctx := context.Background()

	require.NoError(t, f.workflow.Process(ctx, tracker))
	exec := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusFinish, exec.Status)
	assert.Equal(t, BusinessStatusExecuteCompleteForPsync, exec.BusinessStatus)

	psync := f.tracker(t, TrackerID(PsyncWorkflow, "att_1"))
	assert.Equal(t, PsyncWorkflow, psync.Name)
	assert.Equal(t, enums.ProcessTrackerStatusNew, psync.Status)

	require.NoError(t, f.workflow.Process(ctx, psync))
	psync = f.tracker(t, psync.ID)
	assert.Equal(t, enums.ProcessTrackerStatusFinish, psync.Status)
	assert.Equal(t, BusinessStatusPsyncComplete, psync.BusinessStatus)
	exec = f.tracker(t, tracker.ID)
	assert.Equal(t, BusinessStatusExecuteComplete, exec.BusinessStatus)
	assert.Equal(t, []enums.PaymentFlow{enums.PaymentFlowAuthorize, enums.PaymentFlowPSync}, f.exec.calls)
}

func TestPsyncFailureReopensExecuteTracker(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusPending, enums.AttemptStatusFailure)
	tracker := f.schedule(t)
	ctx := context.Background()

	require.NoError(t, f.workflow.Process(ctx, tracker))
	require.NoError(t, f.workflow.Process(ctx, f.tracker(t, TrackerID(PsyncWorkflow, "att_1"))))

	exec := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusPending, exec.Status)
	assert.Equal(t, 1, exec.RetryCount)
	require.NotNil(t, exec.ScheduleTime)
	assert.WithinDuration(t, testNow.Add(5*time.Minute), *exec.ScheduleTime, time.Second)
}

func TestInvalidAttemptStatusMovesToReview(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusVoided)
	tracker := f.schedule(t)

	require.NoError(t, f.workflow.Process(context.Background(), tracker))
	got := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusReview, got.Status)
	assert.Equal(t, BusinessStatusPending, got.BusinessStatus)
}

func TestRedeliveredExecuteAfterPendingAuthorizeHandsOffToPsync(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusPending)
	tracker := f.schedule(t)
	ctx := context.Background()
	merchant, err := f.exec.LoadMerchant(ctx, "m1", "p1")
	require.NoError(t, err)

	// The first delivery authorized and stopped before settling its tracker.
	_, err = f.exec.Run(ctx, enums.PaymentFlowAuthorize, "pay_1", operations.Request{MerchantID: "m1", Recovery: true}, merchant)
	require.NoError(t, err)

	require.NoError(t, f.workflow.Process(ctx, tracker))
	assert.Equal(t, []enums.PaymentFlow{enums.PaymentFlowAuthorize}, f.exec.calls)

	exec := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusFinish, exec.Status)
	assert.Equal(t, BusinessStatusExecuteCompleteForPsync, exec.BusinessStatus)
	psync := f.tracker(t, TrackerID(PsyncWorkflow, "att_1"))
	assert.Equal(t, enums.ProcessTrackerStatusNew, psync.Status)
}

func TestRedeliveredExecuteAfterFailedAuthorizeReschedules(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusFailure)
	tracker := f.schedule(t)
	ctx := context.Background()
	merchant, err := f.exec.LoadMerchant(ctx, "m1", "p1")
	require.NoError(t, err)

	_, err = f.exec.Run(ctx, enums.PaymentFlowAuthorize, "pay_1", operations.Request{MerchantID: "m1", Recovery: true}, merchant)
	require.NoError(t, err)

	require.NoError(t, f.workflow.Process(ctx, tracker))
	assert.Len(t, f.exec.calls, 1)

	got := f.tracker(t, tracker.ID)
	assert.Equal(t, enums.ProcessTrackerStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	var td TrackingData
	require.NoError(t, json.Unmarshal(got.TrackingData, &td))
	assert.Equal(t, 2, td.QueuedAttemptCount)
	assert.False(t, td.CalledConnector)
}

func TestProcessIgnoresClosedTracker(t *testing.T) {
	f := newFixture(t)
	tracker := f.schedule(t)
	status := enums.ProcessTrackerStatusFinish
	_, err := f.trackers.Update(context.Background(), tracker.ID, nil, storage.TrackerUpdate{Status: &status})
	require.NoError(t, err)

	require.NoError(t, f.workflow.Process(context.Background(), tracker))
	assert.Empty(t, f.exec.calls)
}

type stubLocker struct {
	actions []locking.Action
	err     error
}

func (s *stubLocker) Acquire(_ context.Context, action locking.Action, _, _ string) (*locking.Lease, error) {
	s.actions = append(s.actions, action)
	if s.err != nil {
		return nil, s.err
	}
	return &locking.Lease{}, nil
}

func TestProcessHoldsRecoveryLock(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusCharged)
	locks := &stubLocker{}
	f.workflow.locks = locks
	tracker := f.schedule(t)

	require.NoError(t, f.workflow.Process(context.Background(), tracker))
	require.Len(t, locks.actions, 1)
	assert.Equal(t, locking.KindHold, locks.actions[0].Kind)
	assert.Equal(t, operations.RecoveryLockInput("pay_1"), locks.actions[0].Inputs[0])
	assert.Equal(t, []enums.PaymentFlow{enums.PaymentFlowAuthorize}, f.exec.calls)
}

func TestProcessLeavesTaskWhenRecoveryLockBusy(t *testing.T) {
	f := newFixture(t, enums.AttemptStatusCharged)
	f.workflow.locks = &stubLocker{err: pkgerrors.New(pkgerrors.CodeResourceBusy, "resource is busy, please retry")}
	tracker := f.schedule(t)

	err := f.workflow.Process(context.Background(), tracker)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeResourceBusy))
	assert.Empty(t, f.exec.calls)
	assert.Equal(t, enums.ProcessTrackerStatusNew, f.tracker(t, tracker.ID).Status)
}
