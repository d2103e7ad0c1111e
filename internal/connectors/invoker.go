package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
)

// Invoker dispatches a flow to the named connector and normalizes its outcome.
type Invoker struct {
	registry *Registry
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
	now      func() time.Time
}

func NewInvoker(registry *Registry, logg *logger.Logger, m *metrics.PaymentMetrics) (*Invoker, error) {
	if registry == nil {
		return nil, errors.New("connector registry required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Invoker{registry: registry, logg: logg, metrics: m, now: time.Now}, nil
}

// Execute calls connector for data.Flow. The returned error is reserved for
// requests that never reached a connector; connector failures are in Result.Error.
func (i *Invoker) Execute(ctx context.Context, connector string, data RouterData) (Result, error) {
	c, ok := i.registry.Get(connector)
	if !ok {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("connector %q is not configured", connector))
	}

	call, err := methodFor(c, data.Flow)
	if err != nil {
		return Result{}, err
	}

	ctx = i.logg.WithFields(ctx, map[string]any{
		"connector":  c.Name(),
		"flow":       data.Flow.String(),
		"attempt_id": data.AttemptID,
	})

	start := i.now()
	resp, callErr := call(ctx, data)
	elapsed := i.now().Sub(start)

	result := Result{Connector: c.Name()}
	switch {
	case callErr == nil && resp == nil:
		result.Error = &ErrorResponse{Code: "empty_response", Message: "connector returned no response"}
	case callErr == nil:
		result.Response = resp
	default:
		result.Error = normalizeError(callErr)
	}

	outcome := "success"
	if result.Failed() {
		outcome = "failure"
		ctx = i.logg.WithFields(ctx, map[string]any{
			"error_code":    result.Error.Code,
			"error_message": result.Error.Message,
			"status_code":   result.Error.StatusCode,
		})
		i.logg.Warn(ctx, "connector call failed")
	} else {
		ctx = i.logg.WithField(ctx, "attempt_status", result.Response.Status.String())
		i.logg.Info(ctx, "connector call completed")
	}
	i.metrics.ObserveConnectorCall(c.Name(), data.Flow.String(), outcome, elapsed)
	return result, nil
}

type connectorCall func(context.Context, RouterData) (*Response, error)

func methodFor(c Connector, flow enums.PaymentFlow) (connectorCall, error) {
	switch flow {
	case enums.PaymentFlowAuthorize:
		return c.Authorize, nil
	case enums.PaymentFlowCapture, enums.PaymentFlowApprove:
		return c.Capture, nil
	case enums.PaymentFlowVoid:
		return c.Void, nil
	case enums.PaymentFlowPSync:
		return c.Sync, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeNotImpl, fmt.Sprintf("flow %q makes no connector call", flow))
	}
}

// normalizeError keeps connector error values and wraps transport failures.
func normalizeError(err error) *ErrorResponse {
	var resp *ErrorResponse
	if errors.As(err, &resp) && resp != nil {
		return resp
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorResponse{Code: "timeout", Message: err.Error(), AttemptStatus: enums.AttemptStatusPending}
	}
	return &ErrorResponse{Code: "connector_unreachable", Message: err.Error()}
}
