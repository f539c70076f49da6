package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/brokerauth/access"
	apperrors "github.com/jrsteele09/brokerauth/internal/errors"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Identity         string `json:"identity,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError renders err with the status its kind maps to. Wrapped causes are
// logged, never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	resp := errorResponse{
		Error:            string(apperrors.KindOf(err)),
		ErrorDescription: http.StatusText(status),
	}

	var appErr *apperrors.Error
	if apperrors.As(err, &appErr) && appErr.Msg != "" && appErr.Kind != apperrors.KindInternal {
		resp.ErrorDescription = appErr.Msg
	}
	var denial *access.Denial
	if apperrors.As(err, &denial) && denial.Reason == access.ReasonNotWhitelisted {
		resp.Identity = denial.Identity
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	if apperrors.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON request body into dst. Unknown fields are ignored.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.BadRequest("request body is required")
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return apperrors.BadRequest("request body is required")
	} else if err != nil {
		return apperrors.Wrap(apperrors.KindBadRequest, err, "malformed JSON body")
	}
	return nil
}
