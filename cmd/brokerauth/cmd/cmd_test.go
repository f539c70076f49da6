package cmd

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/brokerauth/internal/config"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
	"github.com/jrsteele09/brokerauth/kvstore/memstore"
)

func setupEnv(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("INITIAL_SETUP_KEY", "s3cret")
	t.Setenv("LOG_LEVEL", "error")
	return mr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestWhitelistCommands(t *testing.T) {
	mr := setupEnv(t)

	out, err := run(t, "whitelist", "add", "AB1234", "jane@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "ab1234\tadded")
	assert.Contains(t, out, "jane@example.com\tadded")

	ok, err := mr.SIsMember("brokerauth:access:whitelist", "ab1234")
	require.NoError(t, err)
	assert.True(t, ok)

	out, err = run(t, "whitelist", "add", "ab1234")
	require.NoError(t, err)
	assert.Contains(t, out, "already whitelisted")

	out, err = run(t, "whitelist", "check", " Jane@Example.com ")
	require.NoError(t, err)
	assert.Contains(t, out, "jane@example.com\twhitelisted=true admin=false")

	out, err = run(t, "whitelist", "list")
	require.NoError(t, err)
	assert.Equal(t, "ab1234\njane@example.com\n", out)

	out, err = run(t, "whitelist", "remove", "ab1234")
	require.NoError(t, err)
	assert.Contains(t, out, "ab1234\tremoved")

	out, err = run(t, "whitelist", "remove", "ab1234")
	require.NoError(t, err)
	assert.Contains(t, out, "ab1234\tnot whitelisted")
}

func TestAdminCommands(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "admin", "bootstrap", "--setup-key", "wrong", "root@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	out, err := run(t, "admin", "bootstrap", "root@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "root@example.com\tadmin")

	_, err = run(t, "admin", "bootstrap", "other@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	_, err = run(t, "admin", "bootstrap", "--setup-key", "wrong", "other@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	_, err = run(t, "admin", "promote", "ops@example.com")
	require.NoError(t, err)

	out, err = run(t, "admin", "list")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com\nroot@example.com\n", out)

	out, err = run(t, "whitelist", "check", "ops@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "whitelisted=true admin=true")

	_, err = run(t, "admin", "demote", "root@example.com")
	require.NoError(t, err)

	_, err = run(t, "admin", "demote", "ops@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	out, err = run(t, "whitelist", "check", "root@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "whitelisted=true admin=false")
}

func TestOperatorCommandsRequireRedis(t *testing.T) {
	setupEnv(t)
	t.Setenv("REDIS_URL", "")

	_, err := run(t, "whitelist", "list")
	assert.ErrorIs(t, err, errRedisRequired)
}

func TestServeRejectsBypassOutsideDev(t *testing.T) {
	setupEnv(t)
	t.Setenv("ENV", "PROD")
	t.Setenv("ADMIN_BYPASS", "true")

	_, err := run(t, "serve", "--quiet")
	assert.ErrorIs(t, err, config.ErrBypassOutsideDev)
}

func TestInvalidLogLevel(t *testing.T) {
	setupEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := run(t, "whitelist", "list")
	assert.ErrorContains(t, err, "invalid LOG_LEVEL")
}

func TestNewHandler(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ENV", "PROD")
	cfg := config.New()
	settings, err := config.NewAccessPolicy(cfg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	h, err := newHandler(cfg, settings, memstore.New(), reg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
