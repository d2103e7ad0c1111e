package operations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/internal/gsm"
	"github.com/juspay/hyperswitch-sub035/internal/locking"
	"github.com/juspay/hyperswitch-sub035/internal/routing"
	"github.com/juspay/hyperswitch-sub035/internal/storage"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
)

type PipelineParams struct {
	Deps    *Dependencies
	Locks   *locking.Manager
	Invoker *connectors.Invoker
	// GSM is optional; without it a failed connector call is final.
	GSM     *gsm.Engine
	Metrics *metrics.PaymentMetrics
}

// Pipeline runs a payment flow end to end under the payment lock.
type Pipeline struct {
	registry *Registry
	deps     *Dependencies
	locks    *locking.Manager
	invoker  *connectors.Invoker
	gsm      *gsm.Engine
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

func NewPipeline(params PipelineParams) (*Pipeline, error) {
	registry, err := NewRegistry(params.Deps)
	if err != nil {
		return nil, err
	}
	if params.Locks == nil {
		return nil, errors.New("lock manager required")
	}
	if params.Invoker == nil {
		return nil, errors.New("connector invoker required")
	}
	return &Pipeline{
		registry: registry,
		deps:     params.Deps,
		locks:    params.Locks,
		invoker:  params.Invoker,
		gsm:      params.GSM,
		logg:     params.Deps.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Run executes flow for paymentID. The lock is held from before validation
// until the tracker is persisted; a failed release is reported with the result.
func (p *Pipeline) Run(ctx context.Context, flow enums.PaymentFlow, paymentID string, req Request, merchant Merchant) (data PaymentData, err error) {
	op, err := p.registry.Get(flow)
	if err != nil {
		return PaymentData{}, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	ctx = p.logg.WithMerchantID(ctx, merchant.ID())
	ctx = p.logg.WithPaymentID(ctx, paymentID)
	ctx = p.logg.WithFlow(ctx, flow.String())

	lease, err := p.locks.Acquire(ctx, op.LockAction(paymentID, req), merchant.ID(), req.RequestID)
	if err != nil {
		return PaymentData{}, err
	}
	defer func() {
		if rerr := lease.Release(ctx); rerr != nil {
			p.logg.Error(ctx, "release payment lock", rerr)
			err = multierr.Append(err, rerr)
		}
	}()

	if _, err := op.ValidateRequest(ctx, req, merchant); err != nil {
		return PaymentData{}, err
	}
	data, err = op.GetTracker(ctx, paymentID, req, merchant)
	if err != nil {
		return PaymentData{}, err
	}
	data, call, err := op.Domain(ctx, data)
	if err != nil {
		return PaymentData{}, err
	}
	if call.Kind != routing.Skip {
		data, err = p.callConnector(ctx, data, call)
		if err != nil {
			return PaymentData{}, err
		}
	}
	data, err = op.UpdateTracker(ctx, data)
	if err != nil {
		p.logg.Error(ctx, "update payment tracker", err)
		return PaymentData{}, err
	}

	p.metrics.IncFlowOutcome(flow.String(), data.Intent.Status.String())
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"event":          "payment_flow_complete",
		"call_type":      call.Kind.String(),
		"status":         data.Intent.Status.String(),
		"attempt_id":     data.Attempt.AttemptID,
		"gsm_retries":    data.GSMRetries,
		"webhook_queued": data.WebhookQueued,
	}), "payment flow complete")
	return data, nil
}

// callConnector invokes the routed connector and, on failure, lets the GSM
// engine retry against the remaining candidates.
func (p *Pipeline) callConnector(ctx context.Context, data PaymentData, call routing.ConnectorCallType) (PaymentData, error) {
	data, err := p.invoke(ctx, data, call.Connector)
	if err != nil {
		return data, err
	}
	if !data.Result.Failed() || p.gsm == nil {
		return data, nil
	}

	outcome, err := p.gsm.DoGSMActions(ctx, gsm.Input{MerchantID: data.Merchant.ID(), Flow: data.Flow}, *data.Result, call.Candidates,
		func(ctx context.Context, next routing.Candidate) (connectors.Result, error) {
			var err error
			data, err = p.startRetry(ctx, data, next)
			if err != nil {
				return connectors.Result{}, err
			}
			data, err = p.invoke(ctx, data, next)
			if err != nil {
				return connectors.Result{}, err
			}
			return *data.Result, nil
		})
	if err != nil {
		return data, err
	}
	res := outcome.Result
	data.Result = &res
	data.GSMRetries = outcome.Retries
	return data, nil
}

func (p *Pipeline) invoke(ctx context.Context, data PaymentData, target routing.Candidate) (PaymentData, error) {
	creds, err := p.credentials(ctx, &data, target.MerchantConnectorID)
	if err != nil {
		return data, err
	}
	data.Credentials = creds
	res, err := p.invoker.Execute(ctx, target.Connector, routerData(data))
	if err != nil {
		return data, err
	}
	data.Result = &res
	return data, nil
}

// startRetry closes the failed attempt and opens the next one bound to
// candidate. Both attempts and the intent pointer are written together.
func (p *Pipeline) startRetry(ctx context.Context, data PaymentData, candidate routing.Candidate) (PaymentData, error) {
	failed := data.Attempt
	applyError(&failed, data.Result.Error, failureStatus(data.Flow))

	next := p.deps.newAttempt(data.Intent)
	next.PaymentMethodData = failed.PaymentMethodData
	bind(&next, candidate)

	data.Attempt = next
	activate(&data)

	err := p.deps.Payments.Transaction(ctx, func(_ *gorm.DB, payments *storage.PaymentRepository) error {
		if err := payments.UpsertAttempt(ctx, &failed); err != nil {
			return err
		}
		if err := payments.UpsertAttempt(ctx, &data.Attempt); err != nil {
			return err
		}
		return payments.UpdateIntent(ctx, &data.Intent)
	})
	if err != nil {
		return data, err
	}
	return data, nil
}

func (p *Pipeline) credentials(ctx context.Context, data *PaymentData, mcaID string) (connectors.Credentials, error) {
	if mcaID == "" {
		return connectors.Credentials{}, nil
	}
	mca, err := p.deps.Merchants.FindConnectorAccount(ctx, data.Merchant.ID(), mcaID)
	if err != nil {
		return nil, err
	}
	creds := connectors.Credentials{}
	if len(mca.ConnectorAccountDetails) == 0 {
		return creds, nil
	}
	cipher, err := p.deps.merchantCipher(data)
	if err != nil {
		return nil, err
	}
	if err := cipher.OpenJSON(mca.ConnectorAccountDetails, &creds); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrypt connector credentials")
	}
	return creds, nil
}

func routerData(data PaymentData) connectors.RouterData {
	a := data.Attempt
	rd := connectors.RouterData{
		Flow:                   data.Flow,
		MerchantID:             a.MerchantID,
		PaymentID:              a.PaymentID,
		AttemptID:              a.AttemptID,
		MerchantConnectorID:    deref(a.MerchantConnectorID),
		Amount:                 a.NetAmount,
		Currency:               a.Currency,
		CaptureMethod:          a.CaptureMethod,
		ConnectorTransactionID: deref(a.ConnectorTransactionID),
		PaymentMethod:          data.PaymentMethod,
		Credentials:            data.Credentials,
		IdempotencyKey:         idempotencyKey(a.AttemptID, data.Flow.String()),
	}
	if data.Capture != nil {
		rd.AmountToCapture = data.Capture.Amount
		rd.CaptureSequence = data.Capture.CaptureSequence
		rd.IdempotencyKey = idempotencyKey(data.Capture.CaptureID, data.Flow.String())
	} else if a.AmountToCapture != nil {
		rd.AmountToCapture = *a.AmountToCapture
	}
	return rd
}

// idempotencyKey is stable for one attempt and flow and fits connector key limits.
func idempotencyKey(id, flow string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id+":"+flow)).String()
}

func failureStatus(flow enums.PaymentFlow) enums.AttemptStatus {
	switch flow {
	case enums.PaymentFlowCapture:
		return enums.AttemptStatusCaptureFailed
	case enums.PaymentFlowVoid:
		return enums.AttemptStatusVoidFailed
	case enums.PaymentFlowAuthorize:
		return enums.AttemptStatusAuthorizationFailed
	default:
		return enums.AttemptStatusFailure
	}
}
