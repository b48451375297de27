package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const probeTimeout = 2 * time.Second

// Probe checks one backing dependency for the readiness endpoint.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler answers /health-check/{action}. "ping" is liveness only;
// "ready" runs every probe.
type HealthHandler struct {
	probes []Probe
}

func NewHealthHandler(probes ...Probe) *HealthHandler { return &HealthHandler{probes: probes} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		h.ready(w, r)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "unknown action")
	}
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()
	for _, p := range h.probes {
		if err := p.Check(ctx); err != nil {
			slog.Warn("readiness probe failed", "probe", p.Name, "err", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", p.Name+" unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
}
