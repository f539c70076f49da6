package sessions

import (
	"fmt"
	"time"
)

// Provider tags which identity provider issued the credential behind a session.
type Provider string

const (
	// BrokerSession is backed by the brokerage access token.
	BrokerSession Provider = "broker"
	// IdentitySession is backed by a Google OAuth2 access token.
	IdentitySession Provider = "identity"
)

func (p Provider) Valid() bool {
	return p == BrokerSession || p == IdentitySession
}

func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown session provider %q", s)
	}
	return p, nil
}

// Identity holds the claims returned by a token exchange.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// Credentials are the provider tokens stored with a session.
type Credentials struct {
	AccessToken  string
	RefreshToken string // identity sessions only
}

// Session is the record stored under a session token. Records are written once
// and never updated in place.
type Session struct {
	Provider     Provider  `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IdentityID   string    `json:"identity_id"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	Picture      string    `json:"picture,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Principal is the identifier checked against the whitelist: the email when the
// provider supplied one, otherwise the provider user id.
func (s *Session) Principal() string {
	if s.Email != "" {
		return s.Email
	}
	return s.IdentityID
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
