// Package dummy is a deterministic sandbox connector. Outcomes are chosen by
// the payment method token so tests and local runs can drive every branch.
package dummy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/juspay/hyperswitch-sub035/internal/connectors"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

const Name = "dummy"

// Tokens recognised by Authorize.
const (
	TokenSuccess      = "tok_success"
	TokenDecline      = "tok_decline"
	TokenInsufficient = "tok_insufficient_funds"
	TokenPending      = "tok_pending"
	TokenTimeout      = "tok_timeout"
)

type Connector struct {
	mu       sync.Mutex
	payments map[string]*payment
}

type payment struct {
	status     enums.AttemptStatus
	authorized int64
	captured   int64
}

func New() *Connector {
	return &Connector{payments: map[string]*payment{}}
}

func (c *Connector) Name() string { return Name }

func (c *Connector) Authorize(_ context.Context, data connectors.RouterData) (*connectors.Response, error) {
	token := ""
	if data.PaymentMethod != nil {
		token = strings.TrimSpace(data.PaymentMethod.Token)
	}
	switch token {
	case TokenDecline:
		return nil, &connectors.ErrorResponse{
			Code: "card_declined", Message: "Your card was declined.", StatusCode: http.StatusPaymentRequired,
			AttemptStatus: enums.AttemptStatusAuthorizationFailed,
		}
	case TokenInsufficient:
		return nil, &connectors.ErrorResponse{
			Code: "insufficient_funds", Message: "Insufficient funds.", StatusCode: http.StatusPaymentRequired,
			AttemptStatus: enums.AttemptStatusAuthorizationFailed,
		}
	case TokenTimeout:
		return nil, context.DeadlineExceeded
	}

	id := "dummy_" + uuid.NewString()
	p := &payment{authorized: data.Amount}
	switch {
	case token == TokenPending:
		p.status = enums.AttemptStatusPending
	case data.CaptureMethod == enums.CaptureMethodAutomatic:
		p.status = enums.AttemptStatusCharged
		p.captured = data.Amount
	default:
		p.status = enums.AttemptStatusAuthorized
	}

	c.mu.Lock()
	c.payments[id] = p
	c.mu.Unlock()
	return c.response(id, p), nil
}

func (c *Connector) Capture(_ context.Context, data connectors.RouterData) (*connectors.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.lookup(data.ConnectorTransactionID)
	if err != nil {
		return nil, err
	}
	amount := data.AmountToCapture
	if amount <= 0 {
		amount = p.authorized - p.captured
	}
	if p.captured+amount > p.authorized {
		return nil, &connectors.ErrorResponse{
			Code: "amount_exceeds_authorized", Message: "capture exceeds authorized amount",
			StatusCode: http.StatusUnprocessableEntity, AttemptStatus: enums.AttemptStatusCaptureFailed,
		}
	}
	p.captured += amount
	if p.captured == p.authorized {
		p.status = enums.AttemptStatusCharged
	} else {
		p.status = enums.AttemptStatusPartialChargedAndChargeable
	}
	resp := c.response(data.ConnectorTransactionID, p)
	resp.ConnectorCaptureID = fmt.Sprintf("%s_cap_%d", data.ConnectorTransactionID, data.CaptureSequence)
	resp.AmountCaptured = amount
	return resp, nil
}

func (c *Connector) Void(_ context.Context, data connectors.RouterData) (*connectors.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.lookup(data.ConnectorTransactionID)
	if err != nil {
		return nil, err
	}
	if p.status == enums.AttemptStatusCharged {
		return nil, &connectors.ErrorResponse{
			Code: "already_captured", Message: "payment already captured",
			StatusCode: http.StatusUnprocessableEntity, AttemptStatus: enums.AttemptStatusVoidFailed,
		}
	}
	p.status = enums.AttemptStatusVoided
	return c.response(data.ConnectorTransactionID, p), nil
}

// Sync resolves pending payments to charged.
func (c *Connector) Sync(_ context.Context, data connectors.RouterData) (*connectors.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.lookup(data.ConnectorTransactionID)
	if err != nil {
		return nil, err
	}
	if p.status == enums.AttemptStatusPending {
		p.status = enums.AttemptStatusCharged
		p.captured = p.authorized
	}
	return c.response(data.ConnectorTransactionID, p), nil
}

func (c *Connector) lookup(id string) (*payment, error) {
	p, ok := c.payments[id]
	if !ok {
		return nil, &connectors.ErrorResponse{
			Code: "resource_missing", Message: fmt.Sprintf("no such payment %q", id), StatusCode: http.StatusNotFound,
		}
	}
	return p, nil
}

func (c *Connector) response(id string, p *payment) *connectors.Response {
	return &connectors.Response{
		Status:                 p.status,
		ConnectorTransactionID: id,
		AmountCaptured:         p.captured,
		AmountCapturable:       p.authorized - p.captured,
		RawStatus:              p.status.String(),
	}
}
