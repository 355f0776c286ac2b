package api

import (
	"net/http"

	"github.com/okian/tabroom/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyProvider reports whether the service accepts work.
type ReadyProvider interface {
	Ready() bool
}

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	ready ReadyProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready ReadyProvider) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// HandleHealth handles GET /healthz. It answers 503 until the draw workers run.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleMetrics serves the Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
