// Package access decides whether the bearer of a session token may use gated
// features. It owns the whitelist and admin sets and the two access policies.
package access

import (
	"context"
	"crypto/subtle"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
	"github.com/jrsteele09/brokerauth/kvstore"
)

const (
	whitelistKey = "access:whitelist"
	adminsKey    = "access:admins"

	bulkAddConcurrency = 8
)

// Normalize case-folds an identifier. Every set operation goes through it, so
// membership is case-insensitive.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Registry holds the whitelist and admin sets. Admin membership implies
// whitelist membership for every grant made here; entries written by other
// tools are not repaired on read.
type Registry struct {
	store            kvstore.Store
	whitelistEnabled bool
	setupKey         string
}

// NewRegistry creates a registry. setupKey is the bootstrap secret in plain
// text or as a bcrypt hash; empty disables bootstrap.
func NewRegistry(store kvstore.Store, whitelistEnabled bool, setupKey string) *Registry {
	return &Registry{
		store:            store,
		whitelistEnabled: whitelistEnabled,
		setupKey:         setupKey,
	}
}

func (r *Registry) WhitelistEnabled() bool {
	return r.whitelistEnabled
}

// IsWhitelisted is always true while the whitelist is disabled. Store errors
// count as not whitelisted.
func (r *Registry) IsWhitelisted(ctx context.Context, id string) bool {
	if !r.whitelistEnabled {
		return true
	}
	return r.isMember(ctx, whitelistKey, id)
}

// IsAdmin has no global switch. Store errors count as not admin.
func (r *Registry) IsAdmin(ctx context.Context, id string) bool {
	return r.isMember(ctx, adminsKey, id)
}

func (r *Registry) isMember(ctx context.Context, set, id string) bool {
	id = Normalize(id)
	if id == "" {
		return false
	}
	ok, err := r.store.SetIsMember(ctx, set, id)
	if err != nil {
		log.Err(err).Str("set", set).Msg("membership check failed, denying")
		return false
	}
	return ok
}

// AddToWhitelist reports whether id was newly added.
func (r *Registry) AddToWhitelist(ctx context.Context, id string) (bool, error) {
	id = Normalize(id)
	if id == "" {
		return false, apperrors.BadRequest("identifier is required")
	}
	added, err := r.store.SetAdd(ctx, whitelistKey, id)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUnavailable, err, "failed to update whitelist")
	}
	log.Info().Str("event", "whitelist.add").Str("identity", id).Bool("added", added).Msg("whitelist updated")
	return added, nil
}

// RemoveFromWhitelist reports whether id was present. Admin membership is not
// touched. Existing sessions lose access on their next request.
func (r *Registry) RemoveFromWhitelist(ctx context.Context, id string) (bool, error) {
	id = Normalize(id)
	if id == "" {
		return false, apperrors.BadRequest("identifier is required")
	}
	removed, err := r.store.SetRemove(ctx, whitelistKey, id)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUnavailable, err, "failed to update whitelist")
	}
	log.Info().Str("event", "whitelist.remove").Str("identity", id).Bool("removed", removed).Msg("whitelist updated")
	return removed, nil
}

// BulkResult is the per-identifier outcome of BulkAdd.
type BulkResult struct {
	Identifier string `json:"identifier"`
	Added      bool   `json:"added"`
	Error      string `json:"error,omitempty"`
}

// BulkAdd whitelists every identifier. Failures are reported per entry and do
// not stop the others.
func (r *Registry) BulkAdd(ctx context.Context, ids []string) []BulkResult {
	results := make([]BulkResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkAddConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res := BulkResult{Identifier: Normalize(id)}
			added, err := r.AddToWhitelist(gctx, id)
			if err != nil {
				res.Error = err.Error()
			}
			res.Added = added
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Membership describes one identifier's standing.
type Membership struct {
	Identifier  string `json:"identifier"`
	Whitelisted bool   `json:"whitelisted"`
	Admin       bool   `json:"admin"`
}

// Check reports both memberships of id, honouring the whitelist switch.
func (r *Registry) Check(ctx context.Context, id string) (Membership, error) {
	id = Normalize(id)
	if id == "" {
		return Membership{}, apperrors.BadRequest("identifier is required")
	}
	return Membership{
		Identifier:  id,
		Whitelisted: r.IsWhitelisted(ctx, id),
		Admin:       r.IsAdmin(ctx, id),
	}, nil
}

func (r *Registry) ListWhitelist(ctx context.Context) ([]string, error) {
	return r.list(ctx, whitelistKey)
}

func (r *Registry) ListAdmins(ctx context.Context) ([]string, error) {
	return r.list(ctx, adminsKey)
}

func (r *Registry) list(ctx context.Context, set string) ([]string, error) {
	members, err := r.store.SetMembers(ctx, set)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnavailable, err, "failed to list %s", set)
	}
	sort.Strings(members)
	return members, nil
}

// BootstrapAvailable reports whether no admin exists yet.
func (r *Registry) BootstrapAvailable(ctx context.Context) (bool, error) {
	n, err := r.store.SetSize(ctx, adminsKey)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUnavailable, err, "failed to count admins")
	}
	return n == 0, nil
}

// Bootstrap creates the first admin. It refuses once any admin exists.
//
// The emptiness check and the writes are separate store operations, so two
// concurrent bootstraps can both succeed. Bootstrap is a one-time operator
// action and that window is accepted.
func (r *Registry) Bootstrap(ctx context.Context, setupKey, firstAdmin string) error {
	// Once an admin exists every key gets the same answer.
	available, err := r.BootstrapAvailable(ctx)
	if err != nil {
		return err
	}
	if !available {
		log.Warn().Str("event", "registry.bootstrap").Str("outcome", "conflict").Msg("bootstrap rejected: admin already exists")
		return apperrors.Conflict("system already initialised")
	}

	if !r.checkSetupKey(setupKey) {
		log.Warn().Str("event", "registry.bootstrap").Str("outcome", "denied").Msg("bootstrap rejected: bad setup key")
		return apperrors.Forbidden("invalid setup key")
	}
	firstAdmin = Normalize(firstAdmin)
	if firstAdmin == "" {
		return apperrors.BadRequest("identifier is required")
	}

	if err := r.grantAdmin(ctx, firstAdmin); err != nil {
		return err
	}
	log.Info().Str("event", "registry.bootstrap").Str("outcome", "success").Str("identity", firstAdmin).Msg("first admin created")
	return nil
}

// PromoteToAdmin grants admin (and whitelist) membership to newAdmin. byAdmin
// must already be an admin.
func (r *Registry) PromoteToAdmin(ctx context.Context, byAdmin, newAdmin string) error {
	if !r.IsAdmin(ctx, byAdmin) {
		return apperrors.Forbidden("%s is not an admin", Normalize(byAdmin))
	}
	return r.GrantAdmin(ctx, Normalize(byAdmin), newAdmin)
}

// GrantAdmin adds id to the whitelist and then to the admin set without
// checking the caller. It backs PromoteToAdmin and operator tooling that
// already holds store access.
func (r *Registry) GrantAdmin(ctx context.Context, by, id string) error {
	id = Normalize(id)
	if id == "" {
		return apperrors.BadRequest("identifier is required")
	}
	if err := r.grantAdmin(ctx, id); err != nil {
		return err
	}
	log.Info().Str("event", "registry.promote").Str("by", by).Str("identity", id).Msg("admin granted")
	return nil
}

// DemoteAdmin revokes admin membership from target. byAdmin must be an admin.
func (r *Registry) DemoteAdmin(ctx context.Context, byAdmin, target string) error {
	if !r.IsAdmin(ctx, byAdmin) {
		return apperrors.Forbidden("%s is not an admin", Normalize(byAdmin))
	}
	return r.RevokeAdmin(ctx, Normalize(byAdmin), target)
}

// RevokeAdmin removes target from the admin set. The last remaining admin
// cannot be removed. Whitelist membership is kept.
func (r *Registry) RevokeAdmin(ctx context.Context, by, target string) error {
	target = Normalize(target)
	if target == "" {
		return apperrors.BadRequest("identifier is required")
	}
	isAdmin, err := r.store.SetIsMember(ctx, adminsKey, target)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "failed to read admins")
	}
	if !isAdmin {
		return apperrors.NotFound("%s is not an admin", target)
	}
	n, err := r.store.SetSize(ctx, adminsKey)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "failed to count admins")
	}
	if n <= 1 {
		return apperrors.Conflict("cannot remove the last admin")
	}
	if _, err := r.store.SetRemove(ctx, adminsKey, target); err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "failed to update admins")
	}
	log.Info().Str("event", "registry.demote").Str("by", by).Str("identity", target).Msg("admin revoked")
	return nil
}

// grantAdmin whitelists before granting admin, so a failure part way leaves a
// whitelisted non-admin rather than an admin who is not whitelisted.
func (r *Registry) grantAdmin(ctx context.Context, id string) error {
	if _, err := r.store.SetAdd(ctx, whitelistKey, id); err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "failed to whitelist admin")
	}
	if _, err := r.store.SetAdd(ctx, adminsKey, id); err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, err, "failed to grant admin")
	}
	return nil
}

func (r *Registry) checkSetupKey(candidate string) bool {
	if r.setupKey == "" || candidate == "" {
		return false
	}
	if isBcryptHash(r.setupKey) {
		return bcrypt.CompareHashAndPassword([]byte(r.setupKey), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(r.setupKey), []byte(candidate)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
