package server

import (
	"net/http"

	"github.com/jrsteele09/brokerauth/access"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
)

type identifierRequest struct {
	Identifier string `json:"identifier"`
}

type bootstrapRequest struct {
	SetupKey   string `json:"setup_key"`
	Identifier string `json:"identifier"`
}

type bulkRequest struct {
	Identifiers []string `json:"identifiers"`
}

// AdminStatusHandler reports whether bootstrap is still open.
func (s *Server) AdminStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		available, err := s.registry.BootstrapAvailable(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{
			"bootstrap_available": available,
			"whitelist_enabled":   s.registry.WhitelistEnabled(),
		})
	}
}

// BootstrapHandler creates the first admin. It is guarded by the setup key
// rather than a session.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bootstrapRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := s.registry.Bootstrap(r.Context(), req.SetupKey, req.Identifier); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"identifier": access.Normalize(req.Identifier),
			"role":       "admin",
		})
	}
}

func (s *Server) PromoteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identifierRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		decision := mustDecision(r)
		var err error
		if decision.Bypass {
			err = s.registry.GrantAdmin(r.Context(), decision.IdentityID, req.Identifier)
		} else {
			err = s.registry.PromoteToAdmin(r.Context(), decision.IdentityID, req.Identifier)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"identifier": access.Normalize(req.Identifier),
			"role":       "admin",
		})
	}
}

func (s *Server) DemoteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identifierRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		decision := mustDecision(r)
		var err error
		if decision.Bypass {
			err = s.registry.RevokeAdmin(r.Context(), decision.IdentityID, req.Identifier)
		} else {
			err = s.registry.DemoteAdmin(r.Context(), decision.IdentityID, req.Identifier)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"identifier": access.Normalize(req.Identifier),
			"role":       "user",
		})
	}
}

func (s *Server) ListAdminsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admins, err := s.registry.ListAdmins(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"admins": admins})
	}
}

func (s *Server) ListWhitelistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.registry.ListWhitelist(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"whitelist": users})
	}
}

func (s *Server) AddWhitelistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identifierRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		added, err := s.registry.AddToWhitelist(r.Context(), req.Identifier)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"identifier": access.Normalize(req.Identifier),
			"added":      added,
		})
	}
}

func (s *Server) BulkAddWhitelistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if len(req.Identifiers) == 0 {
			writeError(w, apperrors.BadRequest("identifiers is required"))
			return
		}
		writeJSON(w, http.StatusOK, map[string][]access.BulkResult{
			"results": s.registry.BulkAdd(r.Context(), req.Identifiers),
		})
	}
}

func (s *Server) RemoveWhitelistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		removed, err := s.registry.RemoveFromWhitelist(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"identifier": access.Normalize(id),
			"removed":    removed,
		})
	}
}

func (s *Server) CheckWhitelistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		membership, err := s.registry.Check(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, membership)
	}
}

// mustDecision returns the decision attached by RequireAdmin. Handlers using it
// are only registered behind that middleware.
func mustDecision(r *http.Request) *access.Decision {
	d, ok := access.DecisionFromContext(r.Context())
	if !ok {
		panic("server: admin handler registered without access middleware")
	}
	return d
}
