// Package oauthstate issues and verifies the signed state parameter carried
// through the Google consent redirect.
package oauthstate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
)

const (
	DefaultTTL = 10 * time.Minute
	issuer     = "brokerauth/oauth-state"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims carried inside a state value.
type Claims struct {
	RedirectURI string `json:"redirect_uri,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs state values with HMAC-SHA256. A zero-value key disables it.
type Issuer struct {
	key []byte
	ttl time.Duration
}

func NewIssuer(key string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{key: []byte(key), ttl: ttl}
}

// Enabled reports whether a signing key is configured.
func (i *Issuer) Enabled() bool {
	return i != nil && len(i.key) > 0
}

// Issue returns a new state value bound to redirectURI.
func (i *Issuer) Issue(redirectURI string) (string, error) {
	if !i.Enabled() {
		return uuid.NewString(), nil
	}
	now := NowTimeFunc()
	claims := Claims{
		RedirectURI: redirectURI,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "failed to sign oauth state")
	}
	return signed, nil
}

// Verify checks the signature and expiry of state and that it was issued for
// redirectURI. Any failure is a bad request.
func (i *Issuer) Verify(state, redirectURI string) (*Claims, error) {
	if state == "" {
		return nil, apperrors.BadRequest("state is required")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindBadRequest, err, "invalid or expired state")
	}
	if claims.RedirectURI != "" && redirectURI != "" && claims.RedirectURI != redirectURI {
		return nil, apperrors.BadRequest("state was issued for a different redirect_uri")
	}
	return claims, nil
}
