package config

import "time"

type OAuthConfig interface {
	GetBrokerAPIKey() string
	GetBrokerAPISecret() string
	GetBrokerTokenURL() string
	GetBrokerLoginURL() string
	GetBrokerSessionTTL() time.Duration

	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleAuthURL() string
	GetGoogleTokenURL() string
	GetGoogleUserInfoURL() string
	GetGoogleRedirectURL() string
	GetIdentitySessionTTL() time.Duration

	GetOAuthStateKey() string
	GetUpstreamTimeout() time.Duration
}

type OAuth struct{ source }

var _ OAuthConfig = OAuth{}

func (o OAuth) GetBrokerAPIKey() string {
	return o.get("BROKER_API_KEY", "")
}

func (o OAuth) GetBrokerAPISecret() string {
	return o.get("BROKER_API_SECRET", "")
}

func (o OAuth) GetBrokerTokenURL() string {
	return o.get("BROKER_TOKEN_URL", "https://api.kite.trade/session/token")
}

func (o OAuth) GetBrokerLoginURL() string {
	return o.get("BROKER_LOGIN_URL", "https://kite.zerodha.com/connect/login")
}

func (o OAuth) GetBrokerSessionTTL() time.Duration {
	return o.getDuration("BROKER_SESSION_TTL", 6*time.Hour)
}

func (o OAuth) GetGoogleClientID() string {
	return o.get("GOOGLE_CLIENT_ID", "")
}

func (o OAuth) GetGoogleClientSecret() string {
	return o.get("GOOGLE_CLIENT_SECRET", "")
}

func (o OAuth) GetGoogleAuthURL() string {
	return o.get("GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
}

func (o OAuth) GetGoogleTokenURL() string {
	return o.get("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token")
}

func (o OAuth) GetGoogleUserInfoURL() string {
	return o.get("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v2/userinfo")
}

func (o OAuth) GetGoogleRedirectURL() string {
	return o.get("GOOGLE_REDIRECT_URL", "http://localhost:3000/auth/google/callback")
}

func (o OAuth) GetIdentitySessionTTL() time.Duration {
	return o.getDuration("IDENTITY_SESSION_TTL", 1*time.Hour)
}

// GetOAuthStateKey returns the HMAC key for signed OAuth state values. Empty
// disables state verification.
func (o OAuth) GetOAuthStateKey() string {
	return o.get("OAUTH_STATE_KEY", "")
}

func (o OAuth) GetUpstreamTimeout() time.Duration {
	return o.getDuration("UPSTREAM_TIMEOUT", 10*time.Second)
}
