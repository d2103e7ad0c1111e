package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/juspay/hyperswitch-sub035/api/middleware"
	"github.com/juspay/hyperswitch-sub035/api/responses"
	"github.com/juspay/hyperswitch-sub035/api/validators"
	"github.com/juspay/hyperswitch-sub035/internal/operations"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

// Service is the payment core surface the controllers drive.
type Service interface {
	LoadMerchant(ctx context.Context, merchantID, profileID string) (operations.Merchant, error)
	CreateIntent(ctx context.Context, merchant operations.Merchant, params operations.CreateIntentParams) (*models.PaymentIntent, error)
	Run(ctx context.Context, flow enums.PaymentFlow, paymentID string, req operations.Request, merchant operations.Merchant) (operations.PaymentData, error)
	Retrieve(ctx context.Context, merchant operations.Merchant, paymentID string) (operations.PaymentView, error)
}

// Create stores a payment intent and, when confirm is set, authorizes it in the same call.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant, err := merchantFromRequest(svc, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Confirm && payload.PaymentMethod == nil && payload.RecurringDetails == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment_method is required when confirm is true"))
			return
		}

		intent, err := svc.CreateIntent(r.Context(), merchant, payload.params())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Confirm {
			responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(*intent, nil))
			return
		}

		req := baseRequest(w, merchant)
		req.PaymentMethod = payload.PaymentMethod.toConnector()
		if req.PaymentMethod == nil && payload.RecurringDetails != nil {
			req.PaymentMethod = payload.RecurringDetails.PaymentMethod.toConnector()
		}
		req.MerchantConnectorID = strings.TrimSpace(payload.MerchantConnectorID)
		data, err := svc.Run(r.Context(), enums.PaymentFlowAuthorize, intent.PaymentID, req, merchant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newFlowResponse(data))
	}
}

func Confirm(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload confirmPaymentRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		runFlow(svc, logg, w, r, enums.PaymentFlowAuthorize, func(req *operations.Request) {
			req.PaymentMethod = payload.PaymentMethod.toConnector()
			req.MerchantConnectorID = strings.TrimSpace(payload.MerchantConnectorID)
		})
	}
}

func Capture(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload capturePaymentRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		runFlow(svc, logg, w, r, enums.PaymentFlowCapture, func(req *operations.Request) {
			req.AmountToCapture = payload.AmountToCapture
		})
	}
}

func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cancelPaymentRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		runFlow(svc, logg, w, r, enums.PaymentFlowVoid, func(req *operations.Request) {
			req.CancellationReason = strings.TrimSpace(payload.CancellationReason)
		})
	}
}

func Approve(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runFlow(svc, logg, w, r, enums.PaymentFlowApprove, nil)
	}
}

// RecordAttempt stores an attempt made outside the switch. A failed recurring
// payment is enrolled into passive churn recovery in the same write.
func RecordAttempt(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant, err := merchantFromRequest(svc, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload recordAttemptRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := payload.record()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := baseRequest(w, merchant)
		req.Record = record
		data, err := svc.Run(r.Context(), enums.PaymentFlowAttemptRecord, chi.URLParam(r, "paymentId"), req, merchant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := newFlowResponse(data)
		resp.RecoveryScheduled = data.RecoveryScheduled
		responses.WriteSuccess(w, resp)
	}
}

// Retrieve returns the payment with its attempts. force_sync=true polls the
// connector first.
func Retrieve(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant, err := merchantFromRequest(svc, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		forceSync, err := validators.ParseQueryBool(r, "force_sync")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID := chi.URLParam(r, "paymentId")
		if forceSync {
			_, err := svc.Run(r.Context(), enums.PaymentFlowPSync, paymentID, baseRequest(w, merchant), merchant)
			if err != nil && !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		view, err := svc.Retrieve(r.Context(), merchant, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newViewResponse(view))
	}
}

func runFlow(svc Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request, flow enums.PaymentFlow, customize func(*operations.Request)) {
	merchant, err := merchantFromRequest(svc, r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	req := baseRequest(w, merchant)
	if customize != nil {
		customize(&req)
	}
	data, err := svc.Run(r.Context(), flow, chi.URLParam(r, "paymentId"), req, merchant)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, newFlowResponse(data))
}

func merchantFromRequest(svc Service, r *http.Request) (operations.Merchant, error) {
	if svc == nil {
		return operations.Merchant{}, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable")
	}
	merchantID := middleware.MerchantIDFromContext(r.Context())
	if merchantID == "" {
		return operations.Merchant{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "merchant context missing")
	}
	return svc.LoadMerchant(r.Context(), merchantID, middleware.ProfileIDFromContext(r.Context()))
}

func baseRequest(w http.ResponseWriter, merchant operations.Merchant) operations.Request {
	return operations.Request{
		MerchantID: merchant.ID(),
		RequestID:  w.Header().Get("X-Request-Id"),
	}
}
