package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxIdleLimiters bounds the limiter map before idle entries are pruned.
const maxIdleLimiters = 1024

// callerRateLimiter keeps one token bucket per caller, keyed by credential or
// client address.
type callerRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newCallerRateLimiter(perSecond float64, burst int) *callerRateLimiter {
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &callerRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *callerRateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[key]; ok {
		return l
	}
	if len(rl.limiters) >= maxIdleLimiters {
		rl.prune()
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[key] = l
	return l
}

// prune drops limiters whose bucket is full again. Callers hold mu.
func (rl *callerRateLimiter) prune() {
	for key, l := range rl.limiters {
		if l.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *callerRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := apiKey(c.Request)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.limiter(key).Allow() {
			abortWithError(c, http.StatusTooManyRequests, APIError{
				Message: "rate limit exceeded",
				Type:    errTypeRateLimit,
			})
			return
		}
		c.Next()
	}
}
