package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestTokenSecret is the HMAC secret test tokens are signed with. Configure
// the auth service under test with the same value.
const TestTokenSecret = "test-secret"

// GenerateTestJWT creates an HMAC-signed test token whose subject is the
// given user ID.
func GenerateTestJWT(t *testing.T, sub string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestTokenSecret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

// GenerateTestJWTWithBearer returns the token with the "Bearer " prefix for
// use in an Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, sub string) string {
	return "Bearer " + GenerateTestJWT(t, sub)
}
