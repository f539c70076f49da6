package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/brokerauth/access"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
	"github.com/jrsteele09/brokerauth/sessions"
)

// SessionResponse is returned by both token exchange endpoints.
type SessionResponse struct {
	SessionToken string             `json:"session_token"`
	Provider     sessions.Provider  `json:"provider"`
	Identity     *sessions.Identity `json:"identity"`
	ExpiresIn    int64              `json:"expires_in"`
}

// BrokerLoginHandler returns the brokerage login page URL.
func (s *Server) BrokerLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loginURL, err := s.broker.LoginURL()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": loginURL})
	}
}

// BrokerSessionHandler exchanges a brokerage request token for a session. The
// request token is single use, so failures are returned without retrying.
func (s *Server) BrokerSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RequestToken string `json:"request_token"`
		}
		if isJSON(r) {
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, err)
				return
			}
		}
		if req.RequestToken == "" {
			req.RequestToken = r.URL.Query().Get("request_token")
		}

		res, err := s.broker.Exchange(r.Context(), req.RequestToken)
		if err != nil {
			writeError(w, err)
			return
		}

		identity := sessions.Identity{ID: res.UserID, Name: res.UserName}
		token, err := s.sessions.CreateSession(r.Context(), sessions.BrokerSession,
			sessions.Credentials{AccessToken: res.AccessToken}, identity, 0)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{
			SessionToken: token,
			Provider:     sessions.BrokerSession,
			Identity:     &identity,
			ExpiresIn:    int64(s.sessions.TTL(sessions.BrokerSession) / time.Second),
		})
	}
}

// GoogleLoginHandler returns the Google consent URL and the state value the
// callback must echo back.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectURI := s.redirectURI(r.URL.Query().Get(ParamRedirectURI))
		if redirectURI == "" {
			writeError(w, apperrors.BadRequest("redirect_uri is required"))
			return
		}
		state, err := s.state.Issue(redirectURI)
		if err != nil {
			writeError(w, err)
			return
		}
		consentURL, err := s.google.AuthCodeURL(state, redirectURI)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": consentURL, "state": state})
	}
}

// GoogleSessionHandler exchanges a Google authorization code for a session.
func (s *Server) GoogleSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code        string `json:"code"`
			RedirectURI string `json:"redirect_uri"`
			State       string `json:"state"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		redirectURI := s.redirectURI(req.RedirectURI)

		if s.state.Enabled() {
			if _, err := s.state.Verify(req.State, redirectURI); err != nil {
				writeError(w, err)
				return
			}
		}

		res, err := s.google.Exchange(r.Context(), req.Code, redirectURI)
		if err != nil {
			writeError(w, err)
			return
		}

		token, err := s.sessions.CreateSession(r.Context(), sessions.IdentitySession,
			sessions.Credentials{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, res.Identity, 0)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{
			SessionToken: token,
			Provider:     sessions.IdentitySession,
			Identity:     &res.Identity,
			ExpiresIn:    int64(s.sessions.TTL(sessions.IdentitySession) / time.Second),
		})
	}
}

// LogoutHandler deletes the session and always reports success; a record that
// could not be deleted expires through its TTL.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)

		var req struct {
			Provider string `json:"provider"`
		}
		req.Provider = r.URL.Query().Get(ParamProvider)
		if req.Provider == "" && isJSON(r) {
			_ = decodeJSON(r, &req)
		}
		var provider sessions.Provider
		if req.Provider != "" {
			p, err := sessions.ParseProvider(req.Provider)
			if err != nil {
				writeError(w, apperrors.BadRequest("%s", err.Error()))
				return
			}
			provider = p
		}

		if _, err := s.sessions.DeleteSession(r.Context(), token, provider); err != nil {
			log.Warn().Err(err).Str("token", sessions.Fingerprint(token)).Msg("logout could not delete session, relying on expiry")
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// MeResponse describes the caller's session and standing.
type MeResponse struct {
	IdentityID       string            `json:"identity_id"`
	Provider         sessions.Provider `json:"provider,omitempty"`
	Name             string            `json:"name,omitempty"`
	Email            string            `json:"email,omitempty"`
	Picture          string            `json:"picture,omitempty"`
	IsWhitelisted    bool              `json:"is_whitelisted"`
	IsAdmin          bool              `json:"is_admin"`
	WhitelistEnabled bool              `json:"whitelist_enabled"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
}

// MeHandler reports the identity attached by the regular access policy. With
// the whitelist disabled the policy does not resolve a session, so it is
// resolved here when a token is present.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, ok := access.DecisionFromContext(r.Context())
		if !ok {
			writeError(w, apperrors.Unauthenticated("no access decision"))
			return
		}

		sess := decision.Session
		if sess == nil {
			if token := sessionToken(r); token != "" {
				resolved, err := s.sessions.ResolveSession(r.Context(), token)
				if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
					writeError(w, err)
					return
				}
				sess = resolved
			}
		}

		resp := MeResponse{
			IdentityID:       decision.IdentityID,
			Provider:         decision.Provider,
			IsWhitelisted:    decision.IsWhitelisted,
			WhitelistEnabled: s.registry.WhitelistEnabled(),
		}
		if sess != nil {
			resp.IdentityID = access.Normalize(sess.Principal())
			resp.Provider = sess.Provider
			resp.Name = sess.Name
			resp.Email = sess.Email
			resp.Picture = sess.Picture
			expiresAt := sess.ExpiresAt
			resp.ExpiresAt = &expiresAt
			resp.IsAdmin = s.registry.IsAdmin(r.Context(), resp.IdentityID)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// redirectURI falls back to the configured Google redirect URL.
func (s *Server) redirectURI(requested string) string {
	if requested != "" {
		return requested
	}
	return s.config.GetGoogleRedirectURL()
}
