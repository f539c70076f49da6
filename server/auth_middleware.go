package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/brokerauth/access"
)

// RequireWhitelisted gates a route behind the regular access policy and
// attaches the decision to the request context.
func (s *Server) RequireWhitelisted() func(http.HandlerFunc) http.HandlerFunc {
	return s.requirePolicy(s.policy.RegularAccess)
}

// RequireAdmin gates a route behind the admin access policy.
func (s *Server) RequireAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return s.requirePolicy(s.policy.AdminAccess)
}

type policyFunc func(ctx context.Context, token string) (*access.Decision, error)

func (s *Server) requirePolicy(evaluate policyFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			decision, err := evaluate(r.Context(), sessionToken(r))
			if err != nil {
				writeError(w, err)
				return
			}
			next(w, r.WithContext(access.WithDecision(r.Context(), decision)))
		}
	}
}

// sessionToken finds the session token on a request. The Authorization bearer
// header is checked first, then the query string, then a JSON body field. A
// consumed body is restored for the handler.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if token := r.URL.Query().Get(ParamSessionToken); token != "" {
		return token
	}
	if r.Body == nil || !isJSON(r) {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.SessionToken
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
