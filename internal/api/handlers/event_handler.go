package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"beacon/internal/engine/notify"
	"beacon/internal/pkg/errors"
)

// EventHandler is the entry point domain code uses to announce an event.
type EventHandler struct {
	notifier *notify.Orchestrator
}

func NewEventHandler(notifier *notify.Orchestrator) *EventHandler {
	return &EventHandler{notifier: notifier}
}

func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	event := strings.TrimSpace(req.Event)
	if event == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "event is required", nil)
		return
	}

	var data interface{}
	if len(req.Data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(req.Data))
		dec.UseNumber()
		if err := dec.Decode(&data); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "data must be valid JSON", nil)
			return
		}
	}

	report, err := h.notifier.Broadcast(r.Context(), event, data, t.OrgID)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
