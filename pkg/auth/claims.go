package auth

import "github.com/golang-jwt/jwt/v5"

// MerchantTokenPayload captures the data available when minting a merchant API token.
type MerchantTokenPayload struct {
	MerchantID string
	ProfileID  string
	KeyID      string
}

// MerchantClaims is the typed JWT presented by merchant API clients.
type MerchantClaims struct {
	MerchantID string `json:"merchant_id"`
	ProfileID  string `json:"profile_id"`
	jwt.RegisteredClaims
}
