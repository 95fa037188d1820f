package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "beacon/internal/api/context"
	"beacon/internal/api/middleware"
	"beacon/internal/pkg/errors"
	"beacon/internal/platform/audit"
)

const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON document into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return false
	}
	return true
}

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

// tenant returns the request's organization scope and writes a 401 when the
// tenant middleware did not run.
func tenant(w http.ResponseWriter, r *http.Request) (*middleware.TenantContext, bool) {
	t, ok := middleware.Tenant(r)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Unauthorized", nil)
		return nil, false
	}
	return t, true
}

func recordAudit(l *audit.Logger, r *http.Request, t *middleware.TenantContext, action, resourceType, resourceID string, metadata map[string]interface{}) {
	if l == nil {
		return
	}
	l.Log(r.Context(), audit.AuditLog{
		OrganizationID: t.OrgID,
		UserID:         t.UserID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       metadata,
		IPAddress:      r.RemoteAddr,
		UserAgent:      r.UserAgent(),
	})
}
