package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"beacon/internal/pkg/errors"
	"beacon/internal/platform/config"
)

const (
	LimitRead   = "api_read"
	LimitWrite  = "api_write"
	LimitEvents = "events"

	defaultLimit = 100
	idleBucket   = 10 * time.Minute
)

// RateLimiter is a per-key token bucket refilled over one minute.
type RateLimiter struct {
	store  *sync.Map // map[string]*Bucket
	limits map[string]int
	now    func() time.Time
}

type Bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// NewRateLimiter starts a cleanup loop that runs until ctx is done.
func NewRateLimiter(ctx context.Context, cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		store: &sync.Map{},
		limits: map[string]int{
			LimitRead:   cfg.Read,
			LimitWrite:  cfg.Write,
			LimitEvents: cfg.Events,
		},
		now: time.Now,
	}

	go rl.cleanupLoop(ctx)

	return rl
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(idleBucket)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	now := rl.now()
	rl.store.Range(func(key, value interface{}) bool {
		bucket := value.(*Bucket)
		bucket.mu.Lock()
		if now.Sub(bucket.lastAccess) > idleBucket {
			rl.store.Delete(key)
		}
		bucket.mu.Unlock()
		return true
	})
}

func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	// limit tokens per 60 seconds
	refillRate := float64(limit) / 60.0
	refillTokens := int(now.Sub(bucket.lastRefill).Seconds() * refillRate)

	if refillTokens > 0 {
		bucket.tokens += refillTokens
		if bucket.tokens > limit {
			bucket.tokens = limit
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}

	return false
}

func (rl *RateLimiter) limit(limitType string) int {
	if limit, ok := rl.limits[limitType]; ok && limit > 0 {
		return limit
	}
	return defaultLimit
}

// Limit rejects requests beyond the organization's budget for limitType.
// Unscoped requests are keyed by remote address.
func (rl *RateLimiter) Limit(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var key string
			if tenant, ok := Tenant(r); ok {
				key = fmt.Sprintf("%s:%s", tenant.OrgID, limitType)
			} else {
				key = fmt.Sprintf("%s:%s", r.RemoteAddr, limitType)
			}

			if !rl.Allow(key, rl.limit(limitType)) {
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimited, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}
