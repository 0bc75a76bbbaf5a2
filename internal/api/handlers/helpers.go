package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"strings"

	"github.com/rs/zerolog"
)

// OrganizationHeader carries the tenant every dispatch request is scoped to.
const OrganizationHeader = "X-Organization-ID"

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps a dispatch error to its HTTP status. Internal
// failures are logged and reported without detail beyond the request ID
// that ties the response to the log line.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("request failed")

		body := map[string]string{"error": "internal server error"}
		if id := obs.RequestID(r.Context()); id != "" {
			body["request_id"] = id
		}
		writeJSON(w, r, http.StatusInternalServerError, body)
	}
}

// organizationID reads the tenant header, answering 400 when it is absent.
func organizationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	org := strings.TrimSpace(r.Header.Get(OrganizationHeader))
	if org == "" {
		writeError(w, r, http.StatusBadRequest, OrganizationHeader+" header is required")
		return "", false
	}
	return org, true
}

// decodeJSON reads exactly one JSON object into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}
