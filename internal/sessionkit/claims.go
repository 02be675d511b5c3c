package sessionkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of access token claims shown to the user.
// The values are decoded without signature verification and are for
// display only; the backend remains the authority on token validity.
type TokenClaims struct {
	Subject   string
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var ErrMalformedToken = errors.New("claims.token_malformed")

// InspectAccessToken decodes the claims of an access token without
// verifying its signature.
func InspectAccessToken(accessToken string) (TokenClaims, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, parseErr := parser.ParseUnverified(accessToken, claims); parseErr != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrMalformedToken, parseErr)
	}

	inspected := TokenClaims{}
	if subject, subjectErr := claims.GetSubject(); subjectErr == nil {
		inspected.Subject = subject
	}
	if role, ok := claims["role"].(string); ok {
		inspected.Role = role
	}
	if sessionID, ok := claims["sid"].(string); ok {
		inspected.SessionID = sessionID
	}
	if issuedAt, issuedErr := claims.GetIssuedAt(); issuedErr == nil && issuedAt != nil {
		inspected.IssuedAt = issuedAt.Time
	}
	if expiresAt, expiresErr := claims.GetExpirationTime(); expiresErr == nil && expiresAt != nil {
		inspected.ExpiresAt = expiresAt.Time
	}
	return inspected, nil
}
