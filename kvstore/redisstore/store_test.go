package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/brokerauth/kvstore"
	"github.com/jrsteele09/brokerauth/kvstore/redisstore"
)

func newTestStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := redisstore.New(context.Background(), redisstore.Options{
		URL:    "redis://" + mr.Addr() + "/0",
		Prefix: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := redisstore.New(context.Background(), redisstore.Options{})
	require.Error(t, err)
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, s.Set(ctx, "session:abc", []byte(`{"a":1}`), time.Hour))
	require.True(t, mr.Exists("test:session:abc"))
	require.Equal(t, time.Hour, mr.TTL("test:session:abc"))

	v, err := s.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(v))

	existed, err := s.Delete(ctx, "session:abc")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = s.Delete(ctx, "session:abc")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestStore_Sets(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	added, err := s.SetAdd(ctx, "whitelist", "a@x.com")
	require.NoError(t, err)
	require.True(t, added)

	added, err = s.SetAdd(ctx, "whitelist", "a@x.com")
	require.NoError(t, err)
	require.False(t, added)

	ok, err := s.SetIsMember(ctx, "whitelist", "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, _ = s.SetAdd(ctx, "whitelist", "b@x.com")
	members, err := s.SetMembers(ctx, "whitelist")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, members)

	n, err := s.SetSize(ctx, "whitelist")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	removed, err := s.SetRemove(ctx, "whitelist", "a@x.com")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.SetRemove(ctx, "whitelist", "a@x.com")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestStore_ErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.SetError("ERR forced failure")

	_, err := s.SetIsMember(ctx, "whitelist", "a@x.com")
	require.Error(t, err)
}
