package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the claims carried by the auth provider's access tokens.
// The provider signs them with the project's shared HS256 secret; this app
// never issues tokens of its own.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim (the provider's user id).
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenVerifier validates provider-issued access tokens at the gateway
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for the given shared secret
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// ValidateAccessToken verifies the signature and expiry of an access token
// and returns its claims.
func (v *TokenVerifier) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// InspectToken decodes a token's claims without verifying the signature.
// The client side uses it to read the expiry and identity out of tokens the
// provider already vouched for over TLS; it must never be used to grant
// access.
func InspectToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	var claims Claims
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &claims, nil
}

// TokenExpiry returns the expiry timestamp of a token, or the zero time
// when the token carries none or cannot be decoded.
func TokenExpiry(tokenString string) time.Time {
	claims, err := InspectToken(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
