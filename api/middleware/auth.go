package middleware

import (
	"net/http"
	"strings"

	"github.com/juspay/hyperswitch-sub035/api/responses"
	pkgAuth "github.com/juspay/hyperswitch-sub035/pkg/auth"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

// Auth validates the merchant bearer token and seeds the request context
// with the merchant and profile it was issued for.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
				raw = strings.TrimSpace(raw[7:])
			}
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseMerchantToken(cfg, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithMerchant(r.Context(), claims.MerchantID, claims.ProfileID)
			if logg != nil {
				ctx = logg.WithMerchantID(ctx, claims.MerchantID)
				ctx = logg.WithField(ctx, "profile_id", claims.ProfileID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
