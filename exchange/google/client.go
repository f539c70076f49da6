// Package google exchanges a Google OAuth2 authorization code for tokens and
// the user's identity claims.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/brokerauth/exchange"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
	"github.com/jrsteele09/brokerauth/sessions"
)

const (
	providerName = "google"
	issuerURL    = "https://accounts.google.com"
)

// Config holds the Google OAuth client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Timeout      time.Duration
	// MaxUserInfoRetries bounds retries of transient userinfo failures.
	MaxUserInfoRetries uint64
}

// Result is the outcome of a successful exchange.
type Result struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Identity     sessions.Identity
}

// Client performs the code exchange. It keeps no state between calls.
type Client struct {
	cfg      Config
	provider *oidc.Provider
	oauth    oauth2.Config
	http     *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = exchange.DefaultTimeout
	}
	pc := &oidc.ProviderConfig{
		IssuerURL:   issuerURL,
		AuthURL:     cfg.AuthURL,
		TokenURL:    cfg.TokenURL,
		UserInfoURL: cfg.UserInfoURL,
	}
	provider := pc.NewProvider(context.Background())

	return &Client{
		cfg:      cfg,
		provider: provider,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		http: exchange.NewHTTPClient(cfg.Timeout),
	}
}

func (c *Client) configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// AuthCodeURL returns the consent page URL requesting offline access.
func (c *Client) AuthCodeURL(state, redirectURI string) (string, error) {
	if !c.configured() {
		return "", apperrors.Config("google client id/secret are not configured")
	}
	cfg := c.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for tokens, then fetches the user's
// claims with the new access token. Both calls are bounded by the configured
// timeout and abort when ctx is cancelled.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*Result, error) {
	if code == "" || redirectURI == "" {
		return nil, apperrors.BadRequest("code and redirect_uri are required")
	}
	if !c.configured() {
		return nil, apperrors.Config("google client id/secret are not configured")
	}

	token, err := c.exchangeCode(ctx, code, redirectURI)
	if err != nil {
		log.Err(err).Str("event", "exchange.failed").Str("provider", providerName).Str("step", "token").Msg("token exchange failed")
		return nil, err
	}

	identity, err := c.fetchUserInfo(ctx, token)
	if err != nil {
		log.Err(err).Str("event", "exchange.failed").Str("provider", providerName).Str("step", "userinfo").Msg("token exchange failed")
		return nil, err
	}

	return &Result{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Identity:     *identity,
	}, nil
}

func (c *Client) exchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	cfg := c.oauth
	cfg.RedirectURL = redirectURI
	token, err := cfg.Exchange(ctx, code)
	if err == nil {
		return token, nil
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return nil, classifyStatus(re.Response.StatusCode, "token", err)
	}
	return nil, exchange.ClassifyTransportError(providerName, err)
}

type userInfoResponse struct {
	ID            string `json:"id"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (c *Client) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*sessions.Identity, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = c.cfg.Timeout

	var identity *sessions.Identity
	err := backoff.RetryNotify(
		func() error {
			id, err := c.userInfoOnce(ctx, token)
			if err != nil {
				if apperrors.IsRetryable(err) {
					return err
				}
				return backoff.Permanent(err)
			}
			identity = id
			return nil
		},
		backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxUserInfoRetries), ctx),
		func(err error, next time.Duration) {
			log.Warn().Err(err).Str("provider", providerName).Dur("next", next).Msg("retrying userinfo")
		},
	)
	if err != nil {
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			err = exchange.ClassifyTransportError(providerName, err)
		}
		return nil, err
	}
	return identity, nil
}

func (c *Client) userInfoOnce(ctx context.Context, token *oauth2.Token) (*sessions.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.provider.UserInfoEndpoint(), nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "invalid google userinfo url")
	}
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, exchange.ClassifyTransportError(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, exchange.ClassifyTransportError(providerName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, "userinfo", fmt.Errorf("%s", body))
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, apperrors.Upstream(resp.StatusCode, false, err, "google userinfo response is not valid JSON")
	}

	id := info.ID
	if id == "" {
		id = info.Sub
	}
	if id == "" {
		return nil, apperrors.Upstream(resp.StatusCode, false, nil, "google userinfo response missing id")
	}
	verified := false
	if info.VerifiedEmail != nil {
		verified = *info.VerifiedEmail
	} else if info.EmailVerified != nil {
		verified = *info.EmailVerified
	}

	return &sessions.Identity{
		ID:            id,
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		EmailVerified: verified,
	}, nil
}

// classifyStatus maps an upstream status to the error taxonomy. Only server
// errors are retryable.
func classifyStatus(status int, step string, cause error) error {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return apperrors.Upstream(status, false, cause, "google %s: invalid or expired authorization code", step)
	case status == http.StatusForbidden:
		return apperrors.Upstream(status, false, cause, "google %s: client misconfigured", step)
	case status >= 500:
		return apperrors.Upstream(status, true, cause, "google %s: provider error %d", step, status)
	default:
		return apperrors.Upstream(status, false, cause, "google %s: unexpected status %d", step, status)
	}
}
