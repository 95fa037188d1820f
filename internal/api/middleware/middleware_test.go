package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "beacon/internal/api/context"
	"beacon/internal/platform/auth"
	"beacon/internal/platform/config"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuthMiddleware(t *testing.T) {
	tokenSvc := auth.NewTokenService(config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Minute})
	mw := NewAuthMiddleware(tokenSvc)
	token, err := tokenSvc.GenerateAccessToken("usr_1", "org_1", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			mw.Handle(func(w http.ResponseWriter, r *http.Request) {
				claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
				if claims.OrganizationID != "org_1" {
					t.Errorf("OrganizationID = %s", claims.OrganizationID)
				}
				w.WriteHeader(http.StatusOK)
			})(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestTenantMiddleware(t *testing.T) {
	mw := NewTenantMiddleware()

	t.Run("Valid Tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		claims := &auth.Claims{UserID: "usr_1", OrganizationID: "org_123", Role: "owner"}
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Claims, claims))

		rr := httptest.NewRecorder()
		mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := Tenant(r)
			if !ok || tenant.OrgID != "org_123" || tenant.Role != "owner" {
				t.Errorf("tenant = %+v", tenant)
			}
			w.WriteHeader(http.StatusOK)
		})(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
		}
	})

	t.Run("Unscoped Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Claims, &auth.Claims{UserID: "usr_1"}))

		rr := httptest.NewRecorder()
		mw.Handle(okHandler)(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("No Claims", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mw.Handle(okHandler)(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, config.RateLimitConfig{})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("org_1:events", 3) {
			t.Fatalf("request %d rejected inside the budget", i)
		}
	}
	if rl.Allow("org_1:events", 3) {
		t.Error("request beyond the budget allowed")
	}
	if !rl.Allow("org_2:events", 3) {
		t.Error("buckets must be per key")
	}

	now = now.Add(20 * time.Second)
	if !rl.Allow("org_1:events", 3) {
		t.Error("bucket did not refill")
	}
}

func TestRateLimiter_Limit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, config.RateLimitConfig{Write: 1})
	handler := rl.Limit(LimitWrite)(okHandler)

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), apiContext.Tenant, &TenantContext{OrgID: "org_1"}))
	}

	rr := httptest.NewRecorder()
	handler(rr, newReq())
	if rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler(rr, newReq())
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Errorf("second request status = %d, Retry-After = %q", rr.Code, rr.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, config.RateLimitConfig{})
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("org_1:api_read", 10)

	now = now.Add(idleBucket + time.Second)
	rl.sweep()

	if _, ok := rl.store.Load("org_1:api_read"); ok {
		t.Error("idle bucket was not removed")
	}
}
