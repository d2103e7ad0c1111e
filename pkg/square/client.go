package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client is the Square payments API bound to one access token and default location.
type Client struct {
	sdk        *sqclient.Client
	locationID string
	logger     *logger.Logger
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	c := &Client{
		sdk: sqclient.NewClient(
			sqoption.WithBaseURL(baseURLs[env]),
			sqoption.WithToken(accessToken),
		),
		locationID: strings.TrimSpace(cfg.LocationID),
		logger:     logg,
	}
	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return c, nil
}

// paymentResponse is satisfied by every Square payments response envelope.
type paymentResponse interface {
	GetPayment() *sq.Payment
}

// call logs one Square round trip and maps its failure onto a domain error.
func call[R paymentResponse](ctx context.Context, c *Client, op string, fields map[string]any, fn func() (R, error)) (*sq.Payment, error) {
	c.logRequest(ctx, op, fields)
	resp, err := fn()
	if err != nil {
		mapped := c.mapSquareError(err, strings.ReplaceAll(op, "_", " "))
		c.logFailure(ctx, op, mapped)
		return nil, mapped
	}
	payment := resp.GetPayment()
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("square %s returned no payment", op))
	}
	c.logRequest(ctx, op, map[string]any{
		"phase":      "response",
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// CreatePayment authorizes a payment; Autocomplete also captures it.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("sw-pay", params.IdempotencyKey))
	return call(ctx, c, "create_payment", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountMinor,
		"autocomplete": params.Autocomplete,
		"source_id":    params.SourceID,
	}, func() (*sq.CreatePaymentResponse, error) {
		return c.sdk.Payments.Create(ctx, req)
	})
}

// CompletePayment captures a delayed-capture payment.
func (c *Client) CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	return call(ctx, c, "complete_payment", map[string]any{"payment_id": paymentID}, func() (*sq.CompletePaymentResponse, error) {
		return c.sdk.Payments.Complete(ctx, &sq.CompletePaymentRequest{PaymentID: paymentID})
	})
}

// CancelPayment voids an approved payment that has not been completed.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	return call(ctx, c, "cancel_payment", map[string]any{"payment_id": paymentID}, func() (*sq.CancelPaymentResponse, error) {
		return c.sdk.Payments.Cancel(ctx, &sq.CancelPaymentsRequest{PaymentID: paymentID})
	})
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	return call(ctx, c, "get_payment", map[string]any{"payment_id": paymentID}, func() (*sq.GetPaymentResponse, error) {
		return c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	})
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	return prefix + "-" + uuid.NewString()
}

func (c *Client) logRequest(ctx context.Context, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Debug(c.logger.WithFields(ctx, c.logFields(op, fields)), "square.call")
}

func (c *Client) logFailure(ctx context.Context, op string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Warn(c.logger.WithFields(ctx, c.logFields(op, map[string]any{"error": err.Error()})), "square.call_failed")
}

func (c *Client) logFields(op string, fields map[string]any) map[string]any {
	out := map[string]any{"operation": op, "phase": "request"}
	for k, v := range fields {
		out[k] = c.redact(k, v)
	}
	return out
}

var sensitiveKeyParts = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone", "source"}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

// APIErrorDetail is the first Square error carried by err.
type APIErrorDetail struct {
	StatusCode int
	Category   string
	Code       string
	Detail     string
}

// ErrorDetail extracts the Square error code and detail from an error returned by this client.
func ErrorDetail(err error) (APIErrorDetail, bool) {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return APIErrorDetail{}, false
	}
	out := APIErrorDetail{StatusCode: apiErr.StatusCode}
	for _, sqErr := range extractSquareErrors(apiErr) {
		if sqErr == nil {
			continue
		}
		out.Category = string(sqErr.Category)
		out.Code = string(sqErr.Code)
		out.Detail = stringValue(sqErr.Detail)
		break
	}
	return out, true
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusPaymentRequired, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeConnector
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
