package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	return makeToken(t, jwt.MapClaims{
		"sub":   "user-123",
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"iat":   exp.Add(-time.Hour).Unix(),
		"exp":   exp.Unix(),
	})
}

func TestDecodeClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, err := DecodeClaims(tokenExpiringAt(t, exp))
	if err != nil {
		t.Fatalf("DecodeClaims() error = %v", err)
	}

	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
	if !claims.IssuedAt.Equal(exp.Add(-time.Hour)) {
		t.Errorf("IssuedAt = %v", claims.IssuedAt)
	}
	if claims.Subject != "user-123" || claims.Name != "Ada Lovelace" || claims.Email != "ada@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestDecodeClaims_IgnoresSignature(t *testing.T) {
	// Signed with a key the CLI never sees; decoding must still succeed.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("server-only-key"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeClaims(token); err != nil {
		t.Errorf("DecodeClaims() error = %v", err)
	}
}

func TestDecodeClaims_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"bad base64", "a.b.c"},
		{"missing exp", makeToken(t, jwt.MapClaims{"sub": "x"})},
		{"non numeric exp", makeToken(t, jwt.MapClaims{"exp": "tomorrow"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClaims(tt.token)
			if !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("DecodeClaims() error = %v, want ErrTokenMalformed", err)
			}
		})
	}
}

func TestClaims_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"future", now.Add(time.Second), false},
		{"exactly now", now, true},
		{"past", now.Add(-time.Second), true},
	}
	for _, tt := range tests {
		c := &Claims{ExpiresAt: tt.exp}
		if got := c.Expired(now); got != tt.want {
			t.Errorf("%s: Expired() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
