package handlers

import (
	"context"
	"net/http"
	"strings"

	"beacon/internal/engine/alerting"
	"beacon/internal/pkg/errors"
	"beacon/internal/platform/models"
)

// IncidentHandler lets the issue lifecycle raise and clear incident alerts.
// A failed send is reported as sent=false, never as an HTTP error.
type IncidentHandler struct {
	bridge *alerting.Bridge
}

func NewIncidentHandler(bridge *alerting.Bridge) *IncidentHandler {
	return &IncidentHandler{bridge: bridge}
}

type incidentRequest struct {
	Issue            models.Issue `json:"issue"`
	OrganizationName string       `json:"organization_name"`
}

type incidentResponse struct {
	Sent    bool `json:"sent"`
	Enabled bool `json:"enabled"`
}

type sendFunc func(ctx context.Context, issue *models.Issue, org *models.Organization) bool

func (h *IncidentHandler) Fire(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.bridge.Fire)
}

func (h *IncidentHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.bridge.Resolve)
}

func (h *IncidentHandler) handle(w http.ResponseWriter, r *http.Request, send sendFunc) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req incidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Issue.ID) == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "issue.id is required", nil)
		return
	}

	org := &models.Organization{ID: t.OrgID, Name: req.OrganizationName}
	sent := send(r.Context(), &req.Issue, org)
	writeJSON(w, http.StatusOK, incidentResponse{Sent: sent, Enabled: h.bridge.Enabled()})
}
