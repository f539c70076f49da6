package access

import (
	"context"
	"time"

	"github.com/jrsteele09/brokerauth/sessions"
)

// Decision is the per-request outcome of an access policy. It is computed for
// every request and never stored.
type Decision struct {
	IdentityID    string            `json:"identity_id"`
	Provider      sessions.Provider `json:"provider,omitempty"`
	IsWhitelisted bool              `json:"is_whitelisted"`
	IsAdmin       bool              `json:"is_admin"`
	// Bypass marks decisions taken without resolving a session, either because
	// the whitelist is disabled or the admin emergency bypass is active.
	Bypass    bool      `json:"bypass,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	Session *sessions.Session `json:"-"`
}

type decisionKey struct{}

func WithDecision(ctx context.Context, d *Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the decision attached by the access middleware.
func DecisionFromContext(ctx context.Context) (*Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(*Decision)
	return d, ok
}
