package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nurcrm/backend/internal/interfaces/http/dto"
)

// LoginRateLimiter throttles login attempts per tenant using token buckets.
// External platforms punish login bursts hard, so the limiter sits in front
// of every credentialed endpoint.
type LoginRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginRateLimiter creates a limiter allowing rps requests per second
// with the given burst per key
func NewLoginRateLimiter(rps float64, burst int) *LoginRateLimiter {
	if rps <= 0 {
		rps = 0.2
	}
	if burst <= 0 {
		burst = 3
	}
	rl := &LoginRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.cleanup()
	return rl
}

func (rl *LoginRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-30 * time.Minute)
		for key, entry := range rl.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.limiters, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow reports whether a request for the key may proceed
func (rl *LoginRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Middleware limits requests keyed by the authenticated tenant, falling back
// to the client IP for unauthenticated calls
func (rl *LoginRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetJWTTenantID(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many login attempts, slow down"))
			return
		}
		c.Next()
	}
}
