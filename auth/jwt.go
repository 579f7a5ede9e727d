package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the token fields the CLI relies on.
type Claims struct {
	Subject   string
	Name      string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token is no longer valid at now.
// A token expiring exactly at now is expired.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// DecodeClaims reads the claims of a JWT without verifying its signature.
// Tokens without an exp claim are rejected as malformed.
func DecodeClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenMalformed)
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrTokenMalformed)
	}

	claims := &Claims{ExpiresAt: exp.Time}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	claims.Subject, _ = mc.GetSubject()
	claims.Name, _ = mc["name"].(string)
	claims.Email, _ = mc["email"].(string)
	return claims, nil
}
