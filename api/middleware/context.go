package middleware

import "context"

type contextKey string

const (
	ctxMerchantID contextKey = "merchant_id"
	ctxProfileID  contextKey = "profile_id"
)

func MerchantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxMerchantID).(string); ok {
		return v
	}
	return ""
}

func ProfileIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxProfileID).(string); ok {
		return v
	}
	return ""
}

// WithMerchant injects the authenticated merchant and profile into the context.
func WithMerchant(ctx context.Context, merchantID, profileID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxMerchantID, merchantID)
	return context.WithValue(ctx, ctxProfileID, profileID)
}
