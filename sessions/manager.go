package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
	"github.com/jrsteele09/brokerauth/kvstore"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	tokenBytes = 32 // 256 bits
	keyPrefix  = "session:"

	DefaultBrokerTTL   = 6 * time.Hour
	DefaultIdentityTTL = 1 * time.Hour
)

// Manager issues session tokens and resolves them back to session records.
type Manager struct {
	store       kvstore.Store
	brokerTTL   time.Duration
	identityTTL time.Duration
}

// NewManager creates a session manager. Zero TTLs fall back to the defaults.
func NewManager(store kvstore.Store, brokerTTL, identityTTL time.Duration) *Manager {
	if brokerTTL <= 0 {
		brokerTTL = DefaultBrokerTTL
	}
	if identityTTL <= 0 {
		identityTTL = DefaultIdentityTTL
	}
	return &Manager{
		store:       store,
		brokerTTL:   brokerTTL,
		identityTTL: identityTTL,
	}
}

// TTL returns the configured lifetime for the provider.
func (m *Manager) TTL(p Provider) time.Duration {
	if p == BrokerSession {
		return m.brokerTTL
	}
	return m.identityTTL
}

// CreateSession mints a new token and stores the session under it. A zero ttl
// uses the provider default.
//
// Persistence is required for broker sessions. For identity sessions a store
// failure is logged and the token is still returned.
func (m *Manager) CreateSession(ctx context.Context, provider Provider, creds Credentials, identity Identity, ttl time.Duration) (string, error) {
	if !provider.Valid() {
		return "", apperrors.BadRequest("unknown session provider %q", provider)
	}
	if creds.AccessToken == "" || identity.ID == "" {
		return "", apperrors.BadRequest("access token and identity id are required")
	}
	if ttl <= 0 {
		ttl = m.TTL(provider)
	}

	token, err := generateToken()
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "failed to generate session token")
	}

	now := NowTimeFunc()
	record := Session{
		Provider:    provider,
		AccessToken: creds.AccessToken,
		IdentityID:  identity.ID,
		Email:       identity.Email,
		Name:        identity.Name,
		Picture:     identity.Picture,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if provider == IdentitySession {
		record.RefreshToken = creds.RefreshToken
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "failed to encode session")
	}

	if err := m.store.Set(ctx, sessionKey(token), data, ttl); err != nil {
		if provider == BrokerSession {
			log.Err(err).Str("event", "session.create_failed").Str("provider", string(provider)).Msg("failed to persist session")
			return "", apperrors.Wrap(apperrors.KindUnavailable, err, "failed to persist broker session")
		}
		log.Warn().Err(err).Str("event", "session.create_failed").Str("provider", string(provider)).
			Msg("identity session not persisted, continuing")
	}

	log.Info().
		Str("event", "session.created").
		Str("provider", string(provider)).
		Str("identity", record.Principal()).
		Str("token", Fingerprint(token)).
		Time("expires_at", record.ExpiresAt).
		Msg("session created")
	return token, nil
}

// ResolveSession returns the record stored under token. Missing, expired and
// deleted sessions all yield a NotFound error.
func (m *Manager) ResolveSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperrors.NotFound("no session token supplied")
	}

	data, err := m.store.Get(ctx, sessionKey(token))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.NotFound("session not found or expired")
	} else if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnavailable, err, "session store unavailable")
	}

	var record Session
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "corrupt session record")
	}

	// The stored expiry and the store TTL are written independently; the
	// record's own expiry is authoritative for identity sessions.
	if record.Provider == IdentitySession && record.Expired(NowTimeFunc()) {
		if _, err := m.store.Delete(ctx, sessionKey(token)); err != nil {
			log.Warn().Err(err).Str("token", Fingerprint(token)).Msg("failed to delete expired session")
		}
		log.Info().Str("event", "session.expired").Str("provider", string(record.Provider)).
			Str("token", Fingerprint(token)).Msg("session expired")
		return nil, apperrors.NotFound("session not found or expired")
	}
	return &record, nil
}

// DeleteSession removes the session and reports whether one existed. A non-empty
// provider must match the stored record; mismatches leave the record intact.
func (m *Manager) DeleteSession(ctx context.Context, token string, provider Provider) (bool, error) {
	if token == "" {
		return false, nil
	}
	if provider != "" {
		record, err := m.ResolveSession(ctx, token)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		} else if err != nil {
			return false, err
		}
		if record.Provider != provider {
			return false, nil
		}
	}

	existed, err := m.store.Delete(ctx, sessionKey(token))
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUnavailable, err, "failed to delete session")
	}
	if existed {
		log.Info().Str("event", "session.deleted").Str("token", Fingerprint(token)).Msg("session deleted")
	}
	return existed, nil
}

// Fingerprint returns a short, log-safe prefix of a token.
func Fingerprint(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:8] + "…"
}

func sessionKey(token string) string {
	return keyPrefix + token
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", apperrors.Wrapf(err, "failed to generate random bytes")
	}
	return hex.EncodeToString(b), nil
}
