package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

// Claims carried in a classsync token. Subject is the user ID.
type Claims struct {
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator resolves HS256 bearer tokens into identities. It is the
// only component that sees credentials; everything downstream trusts the
// resolved identity for the connection's lifetime.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates an authenticator with the shared signing secret.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// Authenticate validates the token signature and expiry and returns the
// embedded identity. All parse failures collapse into ErrInvalidToken so the
// handler never leaks token internals to the client.
func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*types.Identity, error) {
	if token == "" {
		return nil, interfaces.ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, interfaces.ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, interfaces.ErrInvalidToken
	}

	return &types.Identity{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		PhotoURL:    claims.Photo,
	}, nil
}

// IssueToken signs a token for identity, valid for ttl. Used by the auth
// collaborator that fronts login, and by tests.
func (a *JWTAuthenticator) IssueToken(identity *types.Identity, ttl time.Duration) (string, error) {
	if identity == nil || identity.UserID == "" {
		return "", errors.New("identity with user ID required")
	}

	now := time.Now()
	claims := &Claims{
		Name:  identity.DisplayName,
		Photo: identity.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
