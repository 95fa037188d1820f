package middleware

import (
	"context"
	"net/http"

	apiContext "beacon/internal/api/context"
	"beacon/internal/pkg/errors"
	"beacon/internal/platform/auth"
)

// TenantContext is the organization scope every configuration and
// broadcast call runs under.
type TenantContext struct {
	OrgID  string
	UserID string
	Role   string
}

// TenantMiddleware derives the organization scope from the token claims.
// It must run after AuthMiddleware.
type TenantMiddleware struct{}

func NewTenantMiddleware() *TenantMiddleware {
	return &TenantMiddleware{}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok || claims == nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Unauthorized", nil)
			return
		}
		if claims.OrganizationID == "" {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Token is not scoped to an organization", nil)
			return
		}

		tenant := &TenantContext{
			OrgID:  claims.OrganizationID,
			UserID: claims.UserID,
			Role:   claims.Role,
		}
		ctx := context.WithValue(r.Context(), apiContext.Tenant, tenant)
		next(w, r.WithContext(ctx))
	}
}

// Tenant returns the scope stored by TenantMiddleware.
func Tenant(r *http.Request) (*TenantContext, bool) {
	tenant, ok := r.Context().Value(apiContext.Tenant).(*TenantContext)
	return tenant, ok && tenant != nil
}
