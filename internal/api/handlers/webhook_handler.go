package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"beacon/internal/engine/notify"
	"beacon/internal/engine/registry"
	"beacon/internal/pkg/errors"
	"beacon/internal/platform/audit"
	"beacon/internal/platform/models"
)

type WebhookHandler struct {
	registry *registry.Service
	notifier *notify.Orchestrator
	audit    *audit.Logger
}

func NewWebhookHandler(reg *registry.Service, notifier *notify.Orchestrator, auditLog *audit.Logger) *WebhookHandler {
	return &WebhookHandler{registry: reg, notifier: notifier, audit: auditLog}
}

// redact hides the signing secret; it is only returned once, on create.
func redact(w *models.Webhook) *models.Webhook {
	out := *w
	out.Secret = ""
	return &out
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req struct {
		Name    string            `json:"name"`
		URL     string            `json:"url"`
		Events  []string          `json:"events"`
		Secret  string            `json:"secret"`
		Headers map[string]string `json:"headers"`
		Enabled *bool             `json:"enabled"`

		// GenerateSecret asks for a whsec_ secret when none is supplied.
		// Without either, deliveries go out unsigned.
		GenerateSecret bool `json:"generate_secret"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Secret == "" && req.GenerateSecret {
		req.Secret = "whsec_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	webhook, err := h.registry.CreateWebhook(r.Context(), t.OrgID, &models.Webhook{
		Name:    req.Name,
		URL:     req.URL,
		Events:  req.Events,
		Secret:  req.Secret,
		Headers: req.Headers,
		Enabled: enabled,
	})
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionCreate, audit.ResourceWebhook, webhook.ID, map[string]interface{}{
		"url":    webhook.URL,
		"events": webhook.Events,
	})
	writeJSON(w, http.StatusCreated, webhook)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	webhooks, err := h.registry.ListWebhooks(r.Context(), t.OrgID)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	out := make([]*models.Webhook, 0, len(webhooks))
	for _, wh := range webhooks {
		out = append(out, redact(wh))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	webhook, err := h.registry.GetWebhook(r.Context(), t.OrgID, param(r, "webhook_id"))
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(webhook))
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var patch models.WebhookPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	webhook, err := h.registry.UpdateWebhook(r.Context(), t.OrgID, param(r, "webhook_id"), patch)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionUpdate, audit.ResourceWebhook, webhook.ID, map[string]interface{}{
		"secret_changed": patch.Secret != nil,
	})
	writeJSON(w, http.StatusOK, redact(webhook))
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	id := param(r, "webhook_id")
	if err := h.registry.DeleteWebhook(r.Context(), t.OrgID, id); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionDelete, audit.ResourceWebhook, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var filter models.DeliveryFilter
	q := r.URL.Query()
	if raw := q.Get("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "success must be true or false", nil)
			return
		}
		filter.Success = &success
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		filter.Limit = limit
	}

	deliveries, err := h.notifier.ListDeliveries(r.Context(), t.OrgID, param(r, "webhook_id"), filter)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

type deliveryDetail struct {
	*models.DeliveryRecord
	Payload json.RawMessage `json:"payload"`
}

func (h *WebhookHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	record, err := h.notifier.GetDelivery(r.Context(), t.OrgID, param(r, "webhook_id"), param(r, "delivery_id"))
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryDetail{DeliveryRecord: record, Payload: json.RawMessage(record.Payload)})
}

func (h *WebhookHandler) Redeliver(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	record, err := h.notifier.Redeliver(r.Context(), t.OrgID, param(r, "webhook_id"), param(r, "delivery_id"))
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionRedeliver, audit.ResourceDelivery, record.ID, map[string]interface{}{
		"webhook_id": record.WebhookID,
		"attempts":   record.Attempts,
	})
	writeJSON(w, http.StatusOK, record)
}

func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	id := param(r, "webhook_id")
	result, err := h.notifier.TestWebhook(r.Context(), t.OrgID, id)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionTest, audit.ResourceWebhook, id, map[string]interface{}{"success": result.Success})
	writeJSON(w, http.StatusOK, result)
}
