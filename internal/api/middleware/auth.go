package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "beacon/internal/api/context"
	"beacon/internal/pkg/errors"
	"beacon/internal/platform/auth"
)

// TokenValidator turns a raw bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle rejects the request with 401 unless it carries a valid bearer
// token, and stores the claims in the request context otherwise.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing or malformed bearer token", nil)
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), apiContext.Claims, claims)))
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
