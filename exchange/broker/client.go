// Package broker exchanges a brokerage login request token for an access token.
package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/brokerauth/exchange"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
)

const providerName = "brokerage"

// Config holds the brokerage app credentials and endpoints.
type Config struct {
	APIKey    string
	APISecret string
	TokenURL  string
	LoginURL  string
	Timeout   time.Duration
}

// Result is the outcome of a successful exchange.
type Result struct {
	AccessToken string
	UserID      string
	UserName    string
}

// Client performs the token exchange. It keeps no state between calls.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = exchange.DefaultTimeout
	}
	return &Client{cfg: cfg, http: exchange.NewHTTPClient(cfg.Timeout)}
}

// Checksum is the hex SHA-256 of apiKey + requestToken + apiSecret.
func Checksum(apiKey, requestToken, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

// LoginURL returns the brokerage login page the user is redirected to.
func (c *Client) LoginURL() (string, error) {
	if c.cfg.APIKey == "" {
		return "", apperrors.Config("brokerage api key is not configured")
	}
	u, err := url.Parse(c.cfg.LoginURL)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindConfig, err, "invalid brokerage login url")
	}
	q := u.Query()
	q.Set("v", "3")
	q.Set("api_key", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type tokenResponse struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	ErrorType string         `json:"error_type"`
	Data      *tokenResponse `json:"data"`

	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
}

// Exchange converts a one-time request token into an access token. Request
// tokens are single use; a replay is reported as a conflict and must not be
// retried.
func (c *Client) Exchange(ctx context.Context, requestToken string) (*Result, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, apperrors.Config("brokerage api key/secret are not configured")
	}
	if requestToken == "" {
		return nil, apperrors.BadRequest("request_token is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	// The secret only enters the checksum; it is never sent.
	form := url.Values{}
	form.Set("api_key", c.cfg.APIKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", Checksum(c.cfg.APIKey, requestToken, c.cfg.APISecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "invalid brokerage token url")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Kite-Version", "3")

	resp, err := c.http.Do(req)
	if err != nil {
		err = exchange.ClassifyTransportError(providerName, err)
		log.Err(err).Str("event", "exchange.failed").Str("provider", providerName).Msg("token exchange failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, exchange.ClassifyTransportError(providerName, err)
	}

	var tr tokenResponse
	_ = json.Unmarshal(body, &tr)

	if resp.StatusCode != http.StatusOK {
		err := classifyStatus(resp.StatusCode, tr.Message)
		log.Err(err).Str("event", "exchange.failed").Str("provider", providerName).
			Int("status", resp.StatusCode).Str("error_type", tr.ErrorType).Msg("token exchange rejected")
		return nil, err
	}

	payload := &tr
	if tr.Data != nil {
		payload = tr.Data
	}
	if payload.AccessToken == "" || payload.UserID == "" {
		return nil, apperrors.Upstream(resp.StatusCode, false, nil, "brokerage response missing access_token or user_id")
	}
	return &Result{
		AccessToken: payload.AccessToken,
		UserID:      payload.UserID,
		UserName:    payload.UserName,
	}, nil
}

func classifyStatus(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusConflict:
		return apperrors.Conflict("request token already used or expired: %s", message)
	case status == http.StatusForbidden:
		return apperrors.Forbidden("brokerage rejected credentials: %s", message)
	default:
		return apperrors.Upstream(status, false, nil, "brokerage token endpoint returned %d: %s", status, message)
	}
}
