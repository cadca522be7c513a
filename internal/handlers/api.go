package handlers

import (
	"fmt"
	"net/http"
	"time"

	"email-router/internal/auth"
	"email-router/internal/common/logging"
)

// Diagnostics API handlers. Every route here sits behind bearer-token auth.

// GetDatastore returns the revision metadata of the serving datastore.
func (h *Handlers) GetDatastore(w http.ResponseWriter, r *http.Request) {
	ds := h.engine.Current()
	if !ds.Active() {
		http.Error(w, "Rules datastore is not active", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":              ds.Name(),
		"revision_number":   ds.RevisionNumber(),
		"revision_datetime": ds.RevisionTime().Format(time.RFC3339),
		"instance_type":     ds.InstanceType().Name,
		"target_count":      ds.TargetCount(),
	})
}

// GetTargets returns the target configs in evaluation order, rules and
// destinations included.
func (h *Handlers) GetTargets(w http.ResponseWriter, r *http.Request) {
	ds := h.engine.Current()
	if !ds.Active() {
		http.Error(w, "Rules datastore is not active", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, http.StatusOK, ds.Targets())
}

// ReloadDatastore rebuilds the datastore from the configured source and
// swaps it in. A failed rebuild leaves the serving snapshot untouched, so
// the caller can fix the document and try again.
func (h *Handlers) ReloadDatastore(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		http.Error(w, "Reloader not configured", http.StatusServiceUnavailable)
		return
	}

	operator, _ := auth.OperatorFromContext(r.Context())
	logging.Info("rules reload requested", logging.String("operator", operator))

	ds, err := h.reloader.ReloadNow()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to reload rules: %v", err), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":          true,
		"name":              ds.Name(),
		"revision_number":   ds.RevisionNumber(),
		"revision_datetime": ds.RevisionTime().Format(time.RFC3339),
		"target_count":      ds.TargetCount(),
	})
}
