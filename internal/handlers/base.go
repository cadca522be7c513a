package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"email-router/internal/common/logging"
	"email-router/internal/config"
	"email-router/internal/reload"
	"email-router/internal/routing"
)

// Handlers wires the HTTP surface to the routing engine, its reloader and
// the process configuration.
type Handlers struct {
	config   *config.Config
	engine   *routing.Engine
	reloader *reload.Reloader
	instance routing.InstanceType
}

// New builds the handler set for one process instance.
func New(cfg *config.Config, engine *routing.Engine, reloader *reload.Reloader, instance routing.InstanceType) *Handlers {
	return &Handlers{
		config:   cfg,
		engine:   engine,
		reloader: reloader,
		instance: instance,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn("Error encoding JSON response", logging.Err(err))
	}
}

// HandleIndex answers the root path so load balancers and curious humans
// get a sign of life without touching the routing engine.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service":     "email-router",
		"instance":    h.instance.Name,
		"api_enabled": h.config.APIEnabled,
	})
}

// HealthCheck reports whether this instance can route mail. The answer is
// 503 degraded until an activated rules datastore is serving.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
		"instance":  h.instance.Name,
	}

	code := http.StatusOK
	if ds := h.engine.Current(); ds.Active() {
		status["datastore_status"] = "active"
		status["datastore_name"] = ds.Name()
		status["revision_number"] = ds.RevisionNumber()
		status["target_count"] = ds.TargetCount()
	} else {
		code = http.StatusServiceUnavailable
		status["status"] = "degraded"
		status["datastore_status"] = "not_active"
	}

	h.writeJSON(w, code, status)
}
