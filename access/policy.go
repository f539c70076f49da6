package access

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/brokerauth/internal/config"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
	"github.com/jrsteele09/brokerauth/sessions"
)

// BypassIdentity is reported when the admin emergency bypass grants access.
const BypassIdentity = "emergency-bypass"

const (
	policyRegular = "regular"
	policyAdmin   = "admin"
)

// Reason explains an access decision in logs, metrics and denial errors.
type Reason string

const (
	ReasonAllowed           Reason = "allowed"
	ReasonWhitelistDisabled Reason = "whitelist_disabled"
	ReasonEmergencyBypass   Reason = "emergency_bypass"
	ReasonNoToken           Reason = "no_token"
	ReasonSessionNotFound   Reason = "session_not_found"
	ReasonStoreUnavailable  Reason = "store_unavailable"
	ReasonNotWhitelisted    Reason = "not_whitelisted"
	ReasonNotAdmin          Reason = "not_admin"
)

// Denial is returned when a policy rejects a request. It unwraps to an
// *apperrors.Error so errors.Is against the kind sentinels works.
type Denial struct {
	Reason Reason
	// Identity is set once the session resolved, so a forbidden caller can be
	// told who they are signed in as.
	Identity string
	err      *apperrors.Error
}

func (d *Denial) Error() string {
	return d.err.Error()
}

func (d *Denial) Unwrap() error {
	return d.err
}

// SessionResolver is the subset of the session manager the policies need.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*sessions.Session, error)
}

// Policy evaluates the regular and admin access policies. Every call resolves
// the session and reads membership afresh; nothing is cached between requests.
type Policy struct {
	settings config.AccessPolicy
	sessions SessionResolver
	registry *Registry
	metrics  *Metrics
}

// NewPolicy creates a policy. metrics may be nil.
func NewPolicy(settings config.AccessPolicy, resolver SessionResolver, registry *Registry, metrics *Metrics) *Policy {
	return &Policy{
		settings: settings,
		sessions: resolver,
		registry: registry,
		metrics:  metrics,
	}
}

// RegularAccess allows any whitelisted identity. With the whitelist disabled
// every request is allowed without resolving the session.
func (p *Policy) RegularAccess(ctx context.Context, token string) (*Decision, error) {
	if !p.settings.WhitelistEnabled {
		d := &Decision{IsWhitelisted: true, Bypass: true}
		p.allow(policyRegular, ReasonWhitelistDisabled, d)
		return d, nil
	}

	sess, denial := p.resolve(ctx, token)
	if denial != nil {
		return nil, p.deny(policyRegular, denial)
	}

	identity := Normalize(sess.Principal())
	if !p.registry.IsWhitelisted(ctx, identity) {
		return nil, p.deny(policyRegular, &Denial{
			Reason:   ReasonNotWhitelisted,
			Identity: identity,
			err:      apperrors.Forbidden("%s is not whitelisted", identity),
		})
	}

	d := decisionFor(sess, identity)
	d.IsWhitelisted = true
	p.allow(policyRegular, ReasonAllowed, d)
	return d, nil
}

// AdminAccess allows admins only. The emergency bypass, when configured,
// allows every request under a synthetic identity. The whitelist switch does
// not apply.
func (p *Policy) AdminAccess(ctx context.Context, token string) (*Decision, error) {
	if p.settings.EmergencyBypass {
		d := &Decision{IdentityID: BypassIdentity, IsWhitelisted: true, IsAdmin: true, Bypass: true}
		log.Warn().Str("event", "auth.decision").Str("policy", policyAdmin).
			Msg("admin emergency bypass active, allowing request")
		p.allow(policyAdmin, ReasonEmergencyBypass, d)
		return d, nil
	}

	sess, denial := p.resolve(ctx, token)
	if denial != nil {
		return nil, p.deny(policyAdmin, denial)
	}

	identity := Normalize(sess.Principal())
	if !p.registry.IsAdmin(ctx, identity) {
		return nil, p.deny(policyAdmin, &Denial{
			Reason:   ReasonNotAdmin,
			Identity: identity,
			err:      apperrors.Forbidden("%s is not an admin", identity),
		})
	}

	d := decisionFor(sess, identity)
	d.IsWhitelisted = p.registry.IsWhitelisted(ctx, identity)
	d.IsAdmin = true
	p.allow(policyAdmin, ReasonAllowed, d)
	return d, nil
}

func (p *Policy) resolve(ctx context.Context, token string) (*sessions.Session, *Denial) {
	if token == "" {
		return nil, &Denial{
			Reason: ReasonNoToken,
			err:    apperrors.Unauthenticated("no session token supplied"),
		}
	}
	sess, err := p.sessions.ResolveSession(ctx, token)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, &Denial{
			Reason: ReasonSessionNotFound,
			err:    apperrors.Unauthenticated("session not found or expired"),
		}
	}
	// Store failures deny the request rather than guessing.
	return nil, &Denial{
		Reason: ReasonStoreUnavailable,
		err:    apperrors.Wrap(apperrors.KindUnavailable, err, "unable to verify session"),
	}
}

func decisionFor(sess *sessions.Session, identity string) *Decision {
	return &Decision{
		IdentityID: identity,
		Provider:   sess.Provider,
		ExpiresAt:  sess.ExpiresAt,
		Session:    sess,
	}
}

func (p *Policy) allow(policy string, reason Reason, d *Decision) {
	p.metrics.observe(policy, "allow", reason)
	log.Debug().Str("event", "auth.decision").Str("policy", policy).Str("outcome", "allow").
		Str("reason", string(reason)).Str("identity", d.IdentityID).Msg("access allowed")
}

func (p *Policy) deny(policy string, d *Denial) error {
	p.metrics.observe(policy, "deny", d.Reason)
	log.Info().Str("event", "auth.decision").Str("policy", policy).Str("outcome", "deny").
		Str("reason", string(d.Reason)).Str("identity", d.Identity).Msg("access denied")
	return d
}
