package access_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/brokerauth/access"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
	"github.com/jrsteele09/brokerauth/kvstore/storefakes"
)

const setupKey = "let-me-in"

func newRegistry(t *testing.T, whitelistEnabled bool) (*access.Registry, *storefakes.FaultyStore) {
	t.Helper()
	store := storefakes.NewFaultyStore()
	return access.NewRegistry(store, whitelistEnabled, setupKey), store
}

func TestWhitelist_AddRemove(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, true)

	require.False(t, r.IsWhitelisted(ctx, "alice@example.com"))

	added, err := r.AddToWhitelist(ctx, "Alice@Example.com")
	require.NoError(t, err)
	require.True(t, added)
	require.True(t, r.IsWhitelisted(ctx, "alice@example.com"))
	require.True(t, r.IsWhitelisted(ctx, "ALICE@EXAMPLE.COM"))

	added, err = r.AddToWhitelist(ctx, "alice@example.com")
	require.NoError(t, err)
	require.False(t, added, "re-adding is idempotent")

	removed, err := r.RemoveFromWhitelist(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, r.IsWhitelisted(ctx, "alice@example.com"))

	removed, err = r.RemoveFromWhitelist(ctx, "alice@example.com")
	require.NoError(t, err)
	require.False(t, removed)

	_, err = r.AddToWhitelist(ctx, "  ")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestWhitelist_Disabled(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, false)

	require.True(t, r.IsWhitelisted(ctx, "anyone@example.com"))
	require.False(t, r.IsAdmin(ctx, "anyone@example.com"), "admin has no global switch")
}

func TestWhitelist_StoreFailureDenies(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistry(t, true)
	_, err := r.AddToWhitelist(ctx, "alice@example.com")
	require.NoError(t, err)

	store.Fail(storefakes.OpSetIsMember, errors.New("connection refused"))
	require.False(t, r.IsWhitelisted(ctx, "alice@example.com"))
	require.False(t, r.IsAdmin(ctx, "alice@example.com"))

	store.Fail(storefakes.OpSetAdd, errors.New("connection refused"))
	_, err = r.AddToWhitelist(ctx, "bob@example.com")
	require.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("first admin", func(t *testing.T) {
		r, _ := newRegistry(t, true)
		available, err := r.BootstrapAvailable(ctx)
		require.NoError(t, err)
		require.True(t, available)

		require.NoError(t, r.Bootstrap(ctx, setupKey, "Root@Example.com"))
		require.True(t, r.IsAdmin(ctx, "root@example.com"))
		require.True(t, r.IsWhitelisted(ctx, "root@example.com"))

		available, err = r.BootstrapAvailable(ctx)
		require.NoError(t, err)
		require.False(t, available)
	})

	t.Run("second bootstrap conflicts", func(t *testing.T) {
		r, _ := newRegistry(t, true)
		require.NoError(t, r.Bootstrap(ctx, setupKey, "root@example.com"))

		err := r.Bootstrap(ctx, setupKey, "other@example.com")
		require.ErrorIs(t, err, apperrors.ErrConflict)
		require.False(t, r.IsAdmin(ctx, "other@example.com"))
	})

	t.Run("any key conflicts once initialised", func(t *testing.T) {
		r, store := newRegistry(t, true)
		require.NoError(t, r.Bootstrap(ctx, setupKey, "root@example.com"))

		require.ErrorIs(t, r.Bootstrap(ctx, "wrong-key", "other@example.com"), apperrors.ErrConflict)
		require.ErrorIs(t, r.Bootstrap(ctx, "", "other@example.com"), apperrors.ErrConflict)

		unconfigured := access.NewRegistry(store, true, "")
		require.ErrorIs(t, unconfigured.Bootstrap(ctx, "", "other@example.com"), apperrors.ErrConflict)
		require.False(t, r.IsAdmin(ctx, "other@example.com"))
	})

	t.Run("wrong key", func(t *testing.T) {
		r, _ := newRegistry(t, true)
		err := r.Bootstrap(ctx, "guess", "root@example.com")
		require.ErrorIs(t, err, apperrors.ErrForbidden)
		require.False(t, r.IsAdmin(ctx, "root@example.com"))
	})

	t.Run("unconfigured key", func(t *testing.T) {
		r := access.NewRegistry(storefakes.NewFaultyStore(), true, "")
		err := r.Bootstrap(ctx, "", "root@example.com")
		require.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("bcrypt key", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte(setupKey), bcrypt.MinCost)
		require.NoError(t, err)
		r := access.NewRegistry(storefakes.NewFaultyStore(), true, string(hash))

		require.ErrorIs(t, r.Bootstrap(ctx, "guess", "root@example.com"), apperrors.ErrForbidden)
		require.NoError(t, r.Bootstrap(ctx, setupKey, "root@example.com"))
	})

	t.Run("admin write failure leaves no admin", func(t *testing.T) {
		r, store := newRegistry(t, true)
		store.Fail(storefakes.OpSetAdd, errors.New("connection refused"))

		err := r.Bootstrap(ctx, setupKey, "root@example.com")
		require.ErrorIs(t, err, apperrors.ErrUnavailable)

		store.Heal()
		require.False(t, r.IsAdmin(ctx, "root@example.com"))
	})
}

func TestPromoteAndDemote(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, true)
	require.NoError(t, r.Bootstrap(ctx, setupKey, "root@example.com"))

	err := r.PromoteToAdmin(ctx, "nobody@example.com", "bob@example.com")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, r.PromoteToAdmin(ctx, "ROOT@example.com", "Bob@Example.com"))
	require.True(t, r.IsAdmin(ctx, "bob@example.com"))
	require.True(t, r.IsWhitelisted(ctx, "bob@example.com"))

	admins, err := r.ListAdmins(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"bob@example.com", "root@example.com"}, admins)

	err = r.DemoteAdmin(ctx, "root@example.com", "carol@example.com")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, r.DemoteAdmin(ctx, "root@example.com", "bob@example.com"))
	require.False(t, r.IsAdmin(ctx, "bob@example.com"))
	require.True(t, r.IsWhitelisted(ctx, "bob@example.com"), "demotion keeps whitelist membership")

	err = r.DemoteAdmin(ctx, "root@example.com", "root@example.com")
	require.ErrorIs(t, err, apperrors.ErrConflict)
	require.True(t, r.IsAdmin(ctx, "root@example.com"))
}

func TestPromoteByAdminOutsideWhitelist(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistry(t, true)
	_, err := store.SetAdd(ctx, "access:admins", "a@x.com")
	require.NoError(t, err)
	require.False(t, r.IsWhitelisted(ctx, "a@x.com"))

	require.NoError(t, r.PromoteToAdmin(ctx, "a@x.com", "b@x.com"))
	require.True(t, r.IsAdmin(ctx, "b@x.com"))
	require.True(t, r.IsWhitelisted(ctx, "b@x.com"))
}

func TestRevokeAdmin_StoreFailure(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistry(t, true)
	require.NoError(t, r.GrantAdmin(ctx, "operator", "ops@example.com"))
	require.NoError(t, r.GrantAdmin(ctx, "operator", "second@example.com"))

	store.Fail(storefakes.OpSetIsMember, errors.New("connection refused"))
	err := r.RevokeAdmin(ctx, "operator", "ops@example.com")
	require.ErrorIs(t, err, apperrors.ErrUnavailable)

	store.Heal()
	require.True(t, r.IsAdmin(ctx, "ops@example.com"))
}

func TestRemoveFromWhitelistKeepsAdmin(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, true)
	require.NoError(t, r.Bootstrap(ctx, setupKey, "root@example.com"))

	_, err := r.RemoveFromWhitelist(ctx, "root@example.com")
	require.NoError(t, err)
	require.False(t, r.IsWhitelisted(ctx, "root@example.com"))
	require.True(t, r.IsAdmin(ctx, "root@example.com"))
}

func TestCheckAndList(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, true)
	require.NoError(t, r.Bootstrap(ctx, setupKey, "root@example.com"))
	_, err := r.AddToWhitelist(ctx, "zed@example.com")
	require.NoError(t, err)

	m, err := r.Check(ctx, "ROOT@example.com")
	require.NoError(t, err)
	require.Equal(t, access.Membership{Identifier: "root@example.com", Whitelisted: true, Admin: true}, m)

	m, err = r.Check(ctx, "zed@example.com")
	require.NoError(t, err)
	require.True(t, m.Whitelisted)
	require.False(t, m.Admin)

	_, err = r.Check(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	list, err := r.ListWhitelist(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"root@example.com", "zed@example.com"}, list)
}

func TestBulkAdd(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, true)
	_, err := r.AddToWhitelist(ctx, "existing@example.com")
	require.NoError(t, err)

	ids := []string{"Existing@Example.com", "", "new@example.com"}
	for i := 0; i < 20; i++ {
		ids = append(ids, fmt.Sprintf("user%02d@example.com", i))
	}

	results := r.BulkAdd(ctx, ids)
	require.Len(t, results, len(ids))

	require.Equal(t, "existing@example.com", results[0].Identifier)
	require.False(t, results[0].Added)
	require.Empty(t, results[0].Error)

	require.NotEmpty(t, results[1].Error)

	require.True(t, results[2].Added)
	for _, res := range results[3:] {
		require.True(t, res.Added, res.Identifier)
	}

	list, err := r.ListWhitelist(ctx)
	require.NoError(t, err)
	require.Len(t, list, 22)
}

func TestOperatorGrantAndRevoke(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, true)

	require.NoError(t, r.GrantAdmin(ctx, "operator", "Ops@Example.com"))
	require.True(t, r.IsAdmin(ctx, "ops@example.com"))
	require.True(t, r.IsWhitelisted(ctx, "ops@example.com"))

	require.ErrorIs(t, r.RevokeAdmin(ctx, "operator", "ops@example.com"), apperrors.ErrConflict)

	require.NoError(t, r.GrantAdmin(ctx, "operator", "second@example.com"))
	require.NoError(t, r.RevokeAdmin(ctx, "operator", "ops@example.com"))
	require.False(t, r.IsAdmin(ctx, "ops@example.com"))

	require.ErrorIs(t, r.GrantAdmin(ctx, "operator", ""), apperrors.ErrBadRequest)
}
