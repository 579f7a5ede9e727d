package auth

import "errors"

// Sentinel errors for authentication.
var (
	// ErrNotLoggedIn means no credential is stored.
	ErrNotLoggedIn = errors.New("auth: not logged in")

	// ErrTokenExpired means the stored token's expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenMalformed means the token could not be decoded or has no expiry.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrLoginTimeout means the login was not completed in time.
	ErrLoginTimeout = errors.New("auth: login timed out")

	// ErrMissingToken means the service reported a completed login without a token.
	ErrMissingToken = errors.New("auth: completed login carried no token")
)
