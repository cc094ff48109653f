package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger checks backend reachability (owl-common/redis.Ping).
type Pinger func(ctx context.Context) error

// HealthHandler GET /healthz
type HealthHandler struct {
	ping    Pinger
	timeout time.Duration
	logger  *zap.Logger
}

func NewHealthHandler(ping Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, timeout: 2 * time.Second, logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeRouteError(w, r, http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "redis": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redis": "up"})
}
