// Package exchange holds the pieces shared by the provider token exchanges.
package exchange

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
)

// DefaultTimeout bounds every upstream provider call.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns a client with a hard per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// ClassifyTransportError maps a failure to reach the provider onto the error
// taxonomy. Timeouts are transient; DNS and connection failures mean the
// provider is unavailable.
func ClassifyTransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.KindUpstream, err, "%s request cancelled", provider)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		e := apperrors.Wrap(apperrors.KindTimeout, err, "%s request timed out", provider)
		e.Retryable = true
		return e
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		e := apperrors.Wrap(apperrors.KindUnavailable, err, "%s unreachable", provider)
		e.Retryable = true
		return e
	}
	return apperrors.Upstream(0, false, err, "%s request failed", provider)
}
