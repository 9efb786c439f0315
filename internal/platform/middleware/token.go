package middleware

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACValidator validates HS256 bearer tokens minted by the deployment's
// identity layer. Only the subject claim is consumed.
type HMACValidator struct {
	signingKey []byte
}

// NewHMACValidator creates a validator for the shared signing key.
func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{signingKey: []byte(signingKey)}
}

func (v *HMACValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token has no subject claim")
	}
	return &JWTClaims{Subject: subject}, nil
}
