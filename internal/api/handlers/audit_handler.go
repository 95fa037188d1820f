package handlers

import (
	"net/http"
	"strconv"

	"beacon/internal/pkg/errors"
	"beacon/internal/platform/audit"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLog *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLog}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	logs, err := h.audit.List(r.Context(), t.OrgID, limit)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
