package auth

import (
	"time"

	"github.com/jekyllbuildr/buildr/session"
)

// Identity is the signed-in user as seen by the CLI.
type Identity struct {
	// Principal is the token subject.
	Principal string

	// DisplayName is the name reported by the service at login.
	DisplayName string

	// Email is taken from the token when present.
	Email string

	// Role is the role reported by the service at login.
	Role string

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time

	// IssuedAt is when the token was issued.
	IssuedAt time.Time
}

// NewIdentity builds an Identity from a stored credential.
func NewIdentity(cred session.Credential) (*Identity, error) {
	claims, err := DecodeClaims(cred.IDToken)
	if err != nil {
		return nil, err
	}
	name := cred.DisplayName
	if name == "" {
		name = claims.Name
	}
	return &Identity{
		Principal:   claims.Subject,
		DisplayName: name,
		Email:       claims.Email,
		Role:        cred.Role,
		ExpiresAt:   claims.ExpiresAt,
		IssuedAt:    claims.IssuedAt,
	}, nil
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return id.Role == role
}

// IsExpired reports whether the identity's token has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	return !id.ExpiresAt.After(now)
}
