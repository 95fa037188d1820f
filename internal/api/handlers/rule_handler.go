package handlers

import (
	"net/http"

	"beacon/internal/engine/notify"
	"beacon/internal/engine/registry"
	"beacon/internal/pkg/errors"
	"beacon/internal/platform/audit"
	"beacon/internal/platform/models"
)

type RuleHandler struct {
	registry *registry.Service
	notifier *notify.Orchestrator
	audit    *audit.Logger
}

func NewRuleHandler(reg *registry.Service, notifier *notify.Orchestrator, auditLog *audit.Logger) *RuleHandler {
	return &RuleHandler{registry: reg, notifier: notifier, audit: auditLog}
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req struct {
		Name    string            `json:"name"`
		Channel models.Channel    `json:"channel"`
		Events  []string          `json:"events"`
		Config  map[string]string `json:"config"`
		Enabled *bool             `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule, err := h.registry.CreateRule(r.Context(), t.OrgID, &models.NotificationRule{
		Name:    req.Name,
		Channel: req.Channel,
		Events:  req.Events,
		Config:  req.Config,
		Enabled: enabled,
	})
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionCreate, audit.ResourceRule, rule.ID, map[string]interface{}{
		"channel": rule.Channel,
		"events":  rule.Events,
	})
	// credentials are echoed once, on create, like webhook secrets
	writeJSON(w, http.StatusCreated, rule)
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	rules, err := h.registry.ListRules(r.Context(), t.OrgID)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	out := make([]*models.NotificationRule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	rule, err := h.registry.GetRule(r.Context(), t.OrgID, param(r, "rule_id"))
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule.Redacted())
}

func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var patch models.NotificationRulePatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	rule, err := h.registry.UpdateRule(r.Context(), t.OrgID, param(r, "rule_id"), patch)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionUpdate, audit.ResourceRule, rule.ID, map[string]interface{}{"channel": rule.Channel})
	writeJSON(w, http.StatusOK, rule.Redacted())
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	id := param(r, "rule_id")
	if err := h.registry.DeleteRule(r.Context(), t.OrgID, id); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionDelete, audit.ResourceRule, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RuleHandler) Test(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	id := param(r, "rule_id")
	result, err := h.notifier.TestRule(r.Context(), t.OrgID, id)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	recordAudit(h.audit, r, t, audit.ActionTest, audit.ResourceRule, id, map[string]interface{}{"success": result.Success})
	writeJSON(w, http.StatusOK, result)
}
