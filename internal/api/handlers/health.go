package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// HealthHandler reports liveness plus, when Check is set, the reachability
// of the backing store.
type HealthHandler struct {
	Check func(ctx context.Context) error
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Check != nil {
		if err := h.Check(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
