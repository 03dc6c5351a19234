package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerifier_UserFromToken(t *testing.T) {
	userID := uuid.New()
	verifier := NewVerifier("provider-secret")

	got, err := verifier.UserFromToken(signToken(t, "provider-secret", userID.String()))
	assert.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifier_UserFromToken_WrongSecret(t *testing.T) {
	verifier := NewVerifier("provider-secret")

	_, err := verifier.UserFromToken(signToken(t, "other-secret", uuid.New().String()))
	assert.Error(t, err)
}

func TestVerifier_UserFromToken_BadSubject(t *testing.T) {
	verifier := NewVerifier("provider-secret")

	_, err := verifier.UserFromToken(signToken(t, "provider-secret", "not-a-uuid"))
	assert.Error(t, err)
}

func TestVerifier_UserFromToken_Expired(t *testing.T) {
	verifier := NewVerifier("provider-secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("provider-secret"))
	assert.NoError(t, err)

	_, err = verifier.UserFromToken(signed)
	assert.Error(t, err)
}
