package incoming

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func TestGuardMarksAndForgets(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	guard, err := NewGuard(store, time.Hour, "webhook:square")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Forget(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(ctx, "")
	require.Error(t, err)
}

func TestNewGuardValidatesParams(t *testing.T) {
	_, err := NewGuard(nil, time.Hour, "scope")
	require.Error(t, err)
	_, err = NewGuard(&memoryStore{}, -time.Second, "scope")
	require.Error(t, err)
	_, err = NewGuard(&memoryStore{}, time.Hour, "")
	require.Error(t, err)
}

func TestSquareEventNotification(t *testing.T) {
	body := `{"merchant_id":"SQ1","event_id":"evt_1","type":"payment.updated","data":{"type":"payment","id":"sq_pay_1","object":{"payment":{"id":"sq_pay_1","status":"COMPLETED"}}}}`
	var event SquareEvent
	require.NoError(t, json.Unmarshal([]byte(body), &event))

	n, ok := event.Notification()
	require.True(t, ok)
	assert.Equal(t, Notification{Connector: "square", EventID: "evt_1", EventType: "payment.updated", TransactionID: "sq_pay_1"}, n)

	event.Type = "refund.updated"
	_, ok = event.Notification()
	assert.False(t, ok)
}

func TestMercadoPagoEventNotificationAcceptsNumericIDs(t *testing.T) {
	body := `{"id":12345,"type":"payment","action":"payment.updated","data":{"id":"998877"}}`
	var event MercadoPagoEvent
	require.NoError(t, json.Unmarshal([]byte(body), &event))

	n, ok := event.Notification()
	require.True(t, ok)
	assert.Equal(t, "mercadopago", n.Connector)
	assert.Equal(t, "12345", n.EventID)
	assert.Equal(t, "998877", n.TransactionID)

	event.Type = "merchant_order"
	_, ok = event.Notification()
	assert.False(t, ok)
}

type stubPayments struct {
	attempt *models.PaymentAttempt
	intent  *models.PaymentIntent
}

func (s stubPayments) FindAttemptByConnectorTransaction(_ context.Context, connector, txnID string) (*models.PaymentAttempt, error) {
	if s.attempt == nil || s.attempt.ConnectorTransactionID == nil || *s.attempt.ConnectorTransactionID != txnID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	}
	return s.attempt, nil
}

func (s stubPayments) FindIntent(_ context.Context, merchantID, paymentID string) (*models.PaymentIntent, error) {
	return s.intent, nil
}

type stubExecutor struct {
	runs []string
	err  error
}

func (s *stubExecutor) LoadMerchant(_ context.Context, merchantID, _ string) (operations.Merchant, error) {
	m := operations.Merchant{}
	m.Account.MerchantID = merchantID
	return m, nil
}

func (s *stubExecutor) Run(_ context.Context, flow enums.PaymentFlow, paymentID string, req operations.Request, _ operations.Merchant) (operations.PaymentData, error) {
	s.runs = append(s.runs, string(flow)+":"+paymentID+":"+req.RequestID)
	if s.err != nil {
		return operations.PaymentData{}, s.err
	}
	return operations.PaymentData{Intent: models.PaymentIntent{PaymentID: paymentID, Status: enums.IntentStatusSucceeded}}, nil
}

type recordingLocker struct {
	kinds []locking.ActionKind
}

func (r *recordingLocker) Acquire(_ context.Context, action locking.Action, _, _ string) (*locking.Lease, error) {
	r.kinds = append(r.kinds, action.Kind)
	return &locking.Lease{}, nil
}

func newTestService(t *testing.T, exec *stubExecutor) *Service {
	t.Helper()
	svc, _ := newTestServiceWithStatus(t, exec, enums.IntentStatusProcessing)
	return svc
}

func newTestServiceWithStatus(t *testing.T, exec *stubExecutor, status enums.IntentStatus) (*Service, *recordingLocker) {
	t.Helper()
	txn := "sq_pay_1"
	locks := &recordingLocker{}
	svc, err := NewService(ServiceParams{
		Payments: stubPayments{
			attempt: &models.PaymentAttempt{AttemptID: "att_1", PaymentID: "pay_1", MerchantID: "m1", ConnectorTransactionID: &txn},
			intent:  &models.PaymentIntent{PaymentID: "pay_1", MerchantID: "m1", ProfileID: "pro_1", Status: status},
		},
		Executor: exec,
		Locks:    locks,
		Logger:   logger.New(logger.Options{ServiceName: "incoming-test"}),
	})
	require.NoError(t, err)
	return svc, locks
}

func TestNewServiceRequiresLocker(t *testing.T) {
	_, err := NewService(ServiceParams{
		Payments: stubPayments{},
		Executor: &stubExecutor{},
		Logger:   logger.New(logger.Options{ServiceName: "incoming-test"}),
	})
	require.Error(t, err)
}

func TestApplyChoosesIngestionLockAction(t *testing.T) {
	ctx := context.Background()

	exec := &stubExecutor{}
	svc, locks := newTestServiceWithStatus(t, exec, enums.IntentStatusProcessing)
	require.NoError(t, svc.Apply(ctx, Notification{Connector: "square", EventID: "evt_q", TransactionID: "sq_pay_1"}))
	assert.Equal(t, []locking.ActionKind{locking.KindQueueWithOk}, locks.kinds)
	assert.Len(t, exec.runs, 1)

	require.NoError(t, svc.Apply(ctx, Notification{Connector: "square", EventID: "evt_u", TransactionID: "unknown"}))
	assert.Equal(t, []locking.ActionKind{locking.KindQueueWithOk, locking.KindNotApplicable}, locks.kinds)
	assert.Len(t, exec.runs, 1)

	exec = &stubExecutor{}
	svc, locks = newTestServiceWithStatus(t, exec, enums.IntentStatusSucceeded)
	require.NoError(t, svc.Apply(ctx, Notification{Connector: "square", EventID: "evt_d", TransactionID: "sq_pay_1"}))
	assert.Equal(t, []locking.ActionKind{locking.KindDrop}, locks.kinds)
	assert.Empty(t, exec.runs)
}

func TestApplyIngestsThroughLockManager(t *testing.T) {
	manager, err := locking.NewManager(locking.ManagerParams{
		Store:  &lockStore{},
		Logger: logger.New(logger.Options{ServiceName: "incoming-test"}),
	})
	require.NoError(t, err)
	txn := "sq_pay_1"
	exec := &stubExecutor{}
	svc, err := NewService(ServiceParams{
		Payments: stubPayments{
			attempt: &models.PaymentAttempt{AttemptID: "att_1", PaymentID: "pay_1", MerchantID: "m1", ConnectorTransactionID: &txn},
			intent:  &models.PaymentIntent{PaymentID: "pay_1", MerchantID: "m1", ProfileID: "pro_1", Status: enums.IntentStatusProcessing},
		},
		Executor: exec,
		Locks:    manager,
		Logger:   logger.New(logger.Options{ServiceName: "incoming-test"}),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Apply(context.Background(), Notification{Connector: "square", EventID: "evt_m", TransactionID: "sq_pay_1"}))
	assert.Equal(t, []string{"psync:pay_1:webhook_evt_m"}, exec.runs)
}

// lockStore fails every call; ingestion actions never reach the store.
type lockStore struct{}

func (s *lockStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return false, errors.New("unexpected SetNX")
}

func (s *lockStore) SetNXMany(context.Context, []string, any, time.Duration) ([]bool, error) {
	return nil, errors.New("unexpected SetNXMany")
}

func (s *lockStore) MGet(context.Context, ...string) ([]string, []bool, error) {
	return nil, nil, errors.New("unexpected MGet")
}

func (s *lockStore) Del(context.Context, ...string) error {
	return errors.New("unexpected Del")
}

func TestApplyRunsPSyncForKnownTransaction(t *testing.T) {
	exec := &stubExecutor{}
	svc := newTestService(t, exec)

	require.NoError(t, svc.Apply(context.Background(), Notification{Connector: "square", EventID: "evt_1", TransactionID: "sq_pay_1"}))
	assert.Equal(t, []string{"psync:pay_1:webhook_evt_1"}, exec.runs)
}

func TestApplyAcknowledgesUnknownTransaction(t *testing.T) {
	exec := &stubExecutor{}
	svc := newTestService(t, exec)

	require.NoError(t, svc.Apply(context.Background(), Notification{Connector: "square", EventID: "evt_2", TransactionID: "other"}))
	assert.Empty(t, exec.runs)
}

func TestApplyIgnoresStateConflict(t *testing.T) {
	exec := &stubExecutor{err: pkgerrors.NewUnexpectedState(pkgerrors.UnexpectedState{CurrentFlow: "psync", FieldName: "status", CurrentValue: "succeeded"})}
	svc := newTestService(t, exec)
	require.NoError(t, svc.Apply(context.Background(), Notification{Connector: "square", EventID: "evt_3", TransactionID: "sq_pay_1"}))
}

func TestApplyReturnsLockContention(t *testing.T) {
	exec := &stubExecutor{err: pkgerrors.New(pkgerrors.CodeResourceBusy, "locked")}
	svc := newTestService(t, exec)
	err := svc.Apply(context.Background(), Notification{Connector: "square", EventID: "evt_4", TransactionID: "sq_pay_1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeResourceBusy))
}
