package broker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/brokerauth/exchange/broker"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
)

const (
	testKey    = "K1"
	testSecret = "S1"
)

// fakeBrokerage issues one access token per request token and rejects replays
// with 409, the way the brokerage token endpoint does.
type fakeBrokerage struct {
	mu       sync.Mutex
	valid    map[string]bool
	consumed map[string]bool
}

func newFakeBrokerage(tokens ...string) *fakeBrokerage {
	f := &fakeBrokerage{valid: map[string]bool{}, consumed: map[string]bool{}}
	for _, t := range tokens {
		f.valid[t] = true
	}
	return f
}

func (f *fakeBrokerage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	requestToken := r.PostForm.Get("request_token")
	w.Header().Set("Content-Type", "application/json")

	if r.PostForm.Get("checksum") != broker.Checksum(r.PostForm.Get("api_key"), requestToken, testSecret) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Invalid checksum", "error_type": "TokenException"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumed[requestToken] || !f.valid[requestToken] {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Token is invalid or has expired.", "error_type": "TokenException"})
		return
	}
	f.consumed[requestToken] = true

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"data": map[string]string{
			"access_token": "access-" + requestToken,
			"user_id":      "AB1234",
			"user_name":    "Test User",
		},
	})
}

func newClient(url string) *broker.Client {
	return broker.NewClient(broker.Config{
		APIKey:    testKey,
		APISecret: testSecret,
		TokenURL:  url,
		LoginURL:  "https://kite.example.com/connect/login",
		Timeout:   2 * time.Second,
	})
}

func TestChecksum(t *testing.T) {
	require.Equal(t, "95ddc20ee0a7806fd6e14da06bbde8124d2afc48264d910f52d5f6f026e6f4a5", broker.Checksum("K1", "R1", "S1"))
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(newFakeBrokerage("R1"))
	defer srv.Close()
	c := newClient(srv.URL)

	t.Run("success", func(t *testing.T) {
		res, err := c.Exchange(context.Background(), "R1")
		require.NoError(t, err)
		require.Equal(t, "access-R1", res.AccessToken)
		require.Equal(t, "AB1234", res.UserID)
	})

	t.Run("replay is a conflict", func(t *testing.T) {
		_, err := c.Exchange(context.Background(), "R1")
		require.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("missing request token", func(t *testing.T) {
		_, err := c.Exchange(context.Background(), "")
		require.ErrorIs(t, err, apperrors.ErrBadRequest)
	})
}

func TestExchange_SecretOnlyInChecksum(t *testing.T) {
	fake := newFakeBrokerage("R1")
	var got map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		fake.ServeHTTP(w, r)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Exchange(context.Background(), "R1")
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"api_key", "request_token", "checksum"}, mapKeys(got))
	for _, values := range got {
		require.NotContains(t, values, testSecret)
	}
}

func mapKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestExchange_BadSecret(t *testing.T) {
	srv := httptest.NewServer(newFakeBrokerage("R1"))
	defer srv.Close()

	c := broker.NewClient(broker.Config{APIKey: testKey, APISecret: "wrong", TokenURL: srv.URL})
	_, err := c.Exchange(context.Background(), "R1")
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestExchange_NotConfigured(t *testing.T) {
	c := broker.NewClient(broker.Config{TokenURL: "http://127.0.0.1:1"})
	_, err := c.Exchange(context.Background(), "R1")
	require.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestExchange_UpstreamFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Exchange(context.Background(), "R1")
		require.ErrorIs(t, err, apperrors.ErrUpstream)
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, http.StatusBadGateway, appErr.Status)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success"}`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Exchange(context.Background(), "R1")
		require.ErrorIs(t, err, apperrors.ErrUpstream)
	})

	t.Run("timeout", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-block:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(block)

		c := broker.NewClient(broker.Config{APIKey: testKey, APISecret: testSecret, TokenURL: srv.URL, Timeout: 50 * time.Millisecond})
		_, err := c.Exchange(context.Background(), "R1")
		require.ErrorIs(t, err, apperrors.ErrTimeout)
	})

	t.Run("cancelled by caller", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newClient(srv.URL).Exchange(ctx, "R1")
		require.Error(t, err)
	})
}

func TestLoginURL(t *testing.T) {
	u, err := newClient("http://unused").LoginURL()
	require.NoError(t, err)
	require.Equal(t, "https://kite.example.com/connect/login?api_key=K1&v=3", u)

	_, err = broker.NewClient(broker.Config{}).LoginURL()
	require.ErrorIs(t, err, apperrors.ErrConfig)
}
