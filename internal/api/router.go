package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "beacon/internal/api/context"
	"beacon/internal/api/handlers"
	"beacon/internal/api/middleware"
	"beacon/internal/pkg/errors"
	"beacon/internal/platform/auth"
)

type Dependencies struct {
	WebhookHandler   *handlers.WebhookHandler
	RuleHandler      *handlers.RuleHandler
	EventHandler     *handlers.EventHandler
	IncidentHandler  *handlers.IncidentHandler
	AuditHandler     *handlers.AuditHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	RateLimiter      *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware
	read := deps.RateLimiter.Limit(middleware.LimitRead)
	write := deps.RateLimiter.Limit(middleware.LimitWrite)
	admin := requireRole("admin", "owner")

	// Webhooks
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, authMid.Handle, tenantMid.Handle, admin, write))
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Get, authMid.Handle, tenantMid.Handle, read))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Update, authMid.Handle, tenantMid.Handle, admin, write))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Delete, authMid.Handle, tenantMid.Handle, admin, write))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(deps.WebhookHandler.Test, authMid.Handle, tenantMid.Handle, admin, write))

	// Delivery history
	router.GET("/api/v1/webhooks/:webhook_id/deliveries",
		chain(deps.WebhookHandler.ListDeliveries, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/webhooks/:webhook_id/deliveries/:delivery_id",
		chain(deps.WebhookHandler.GetDelivery, authMid.Handle, tenantMid.Handle, read))
	router.POST("/api/v1/webhooks/:webhook_id/deliveries/:delivery_id/redeliver",
		chain(deps.WebhookHandler.Redeliver, authMid.Handle, tenantMid.Handle, admin, write))

	// Notification rules
	router.POST("/api/v1/notification-rules",
		chain(deps.RuleHandler.Create, authMid.Handle, tenantMid.Handle, admin, write))
	router.GET("/api/v1/notification-rules",
		chain(deps.RuleHandler.List, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/notification-rules/:rule_id",
		chain(deps.RuleHandler.Get, authMid.Handle, tenantMid.Handle, read))
	router.PATCH("/api/v1/notification-rules/:rule_id",
		chain(deps.RuleHandler.Update, authMid.Handle, tenantMid.Handle, admin, write))
	router.DELETE("/api/v1/notification-rules/:rule_id",
		chain(deps.RuleHandler.Delete, authMid.Handle, tenantMid.Handle, admin, write))
	router.POST("/api/v1/notification-rules/:rule_id/test",
		chain(deps.RuleHandler.Test, authMid.Handle, tenantMid.Handle, admin, write))

	// Domain entry points
	router.POST("/api/v1/events",
		chain(deps.EventHandler.Publish, authMid.Handle, tenantMid.Handle, deps.RateLimiter.Limit(middleware.LimitEvents)))
	router.POST("/api/v1/incidents/fire",
		chain(deps.IncidentHandler.Fire, authMid.Handle, tenantMid.Handle, write))
	router.POST("/api/v1/incidents/resolve",
		chain(deps.IncidentHandler.Resolve, authMid.Handle, tenantMid.Handle, write))

	// Audit
	router.GET("/api/v1/audit-logs",
		chain(deps.AuditHandler.List, authMid.Handle, tenantMid.Handle, admin, read))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Unauthorized", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
