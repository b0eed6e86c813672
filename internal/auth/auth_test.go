package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

func TestAuthenticate_RoundTrip(t *testing.T) {
	authenticator := NewJWTAuthenticator("test-secret")

	token, err := authenticator.IssueToken(&types.Identity{
		UserID:      "user-1",
		DisplayName: "Alice",
		PhotoURL:    "https://example.com/alice.png",
	}, time.Hour)
	require.NoError(t, err)

	identity, err := authenticator.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.Equal(t, "Alice", identity.DisplayName)
	assert.Equal(t, "https://example.com/alice.png", identity.PhotoURL)
}

func TestAuthenticate_EmptyToken(t *testing.T) {
	authenticator := NewJWTAuthenticator("test-secret")

	_, err := authenticator.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidToken)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	issuer := NewJWTAuthenticator("secret-a")
	verifier := NewJWTAuthenticator("secret-b")

	token, err := issuer.IssueToken(&types.Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, interfaces.ErrInvalidToken)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	authenticator := NewJWTAuthenticator("test-secret")

	token, err := authenticator.IssueToken(&types.Identity{UserID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = authenticator.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, interfaces.ErrInvalidToken)
}

func TestAuthenticate_MissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	claims := &Claims{
		Name: "No Subject",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	authenticator := NewJWTAuthenticator("test-secret")
	_, err = authenticator.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, interfaces.ErrInvalidToken)
}

func TestAuthenticate_RejectsUnsignedToken(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	authenticator := NewJWTAuthenticator("test-secret")
	_, err = authenticator.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, interfaces.ErrInvalidToken)
}

func TestIssueToken_RequiresUserID(t *testing.T) {
	authenticator := NewJWTAuthenticator("test-secret")

	_, err := authenticator.IssueToken(nil, time.Hour)
	assert.Error(t, err)

	_, err = authenticator.IssueToken(&types.Identity{DisplayName: "No ID"}, time.Hour)
	assert.Error(t, err)
}
