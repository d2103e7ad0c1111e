package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/juspay/hyperswitch-sub035/api/responses"
	"github.com/juspay/hyperswitch-sub035/internal/webhooks/incoming"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

const maxWebhookBody = 1 << 20

// Service applies a decoded connector notification.
type Service interface {
	Apply(ctx context.Context, n incoming.Notification) error
}

type Guard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// SquareWebhook handles Square payment.* notifications.
func SquareWebhook(svc Service, guard Guard, cfg config.SquareConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		payload, err := readPayload(svc, guard, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		signature := r.Header.Get("X-Square-Hmacsha256-Signature")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "square signature missing"))
			return
		}
		if !validSquareSignature(payload, cfg.WebhookURL, cfg.WebhookSignatureKey, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature"))
			return
		}

		var event incoming.SquareEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		n, ok := event.Notification()
		if !ok {
			responses.WriteSuccess(w, nil)
			return
		}
		apply(ctx, w, svc, guard, n, logg)
	}
}

// MercadoPagoWebhook handles Mercado Pago payment notifications.
func MercadoPagoWebhook(svc Service, guard Guard, cfg config.MercadoPagoConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		payload, err := readPayload(svc, guard, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event incoming.MercadoPagoEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		n, ok := event.Notification()
		if !ok {
			responses.WriteSuccess(w, nil)
			return
		}

		dataID := r.URL.Query().Get("data.id")
		if dataID == "" {
			dataID = n.TransactionID
		}
		if !validMercadoPagoSignature(dataID, r.Header.Get("X-Request-Id"), r.Header.Get("X-Signature"), cfg.WebhookSecret) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid mercadopago signature"))
			return
		}
		apply(ctx, w, svc, guard, n, logg)
	}
}

func readPayload(svc Service, guard Guard, r *http.Request) ([]byte, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable")
	}
	if guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable")
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	return payload, nil
}

func apply(ctx context.Context, w http.ResponseWriter, svc Service, guard Guard, n incoming.Notification, logg *logger.Logger) {
	if n.EventID == "" {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
		return
	}
	seen, err := guard.CheckAndMark(ctx, n.Connector+":"+n.EventID)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if seen {
		responses.WriteSuccess(w, nil)
		return
	}
	if err := svc.Apply(ctx, n); err != nil {
		_ = guard.Forget(ctx, n.Connector+":"+n.EventID)
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccess(w, nil)
}

// validSquareSignature checks base64(HMAC-SHA256(key, notificationURL+body)).
func validSquareSignature(payload []byte, notificationURL, key, header string) bool {
	if header == "" || key == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// validMercadoPagoSignature checks the v1 hash of the
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" manifest.
func validMercadoPagoSignature(dataID, requestID, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}
	var manifest strings.Builder
	if dataID != "" {
		manifest.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		manifest.WriteString("request-id:" + requestID + ";")
	}
	manifest.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest.String()))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(v1))
}
