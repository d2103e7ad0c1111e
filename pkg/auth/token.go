package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintMerchantToken issues a signed JWT for the merchant using the configured TTL.
func MintMerchantToken(cfg config.JWTConfig, now time.Time, payload MerchantTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if strings.TrimSpace(payload.MerchantID) == "" {
		return "", fmt.Errorf("merchant id is required")
	}
	if strings.TrimSpace(payload.ProfileID) == "" {
		return "", fmt.Errorf("profile id is required")
	}

	jti := strings.TrimSpace(payload.KeyID)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := MerchantClaims{
		MerchantID: payload.MerchantID,
		ProfileID:  payload.ProfileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.MerchantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseMerchantToken validates the JWT string and returns typed claims.
func ParseMerchantToken(cfg config.JWTConfig, tokenString string) (*MerchantClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &MerchantClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	if claims.MerchantID == "" {
		return nil, fmt.Errorf("token has no merchant id")
	}
	return claims, nil
}
