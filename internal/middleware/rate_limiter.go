package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"elfbaby/internal/api/dto"
)

// ==================== ClientRateLimiter 前台限流器 ====================

// ClientRateLimiter 按客户端 IP 的令牌桶限流
type ClientRateLimiter struct {
	limit      rate.Limit
	burst      int
	ttl        time.Duration
	sweepEvery time.Duration

	mu        sync.Mutex
	clients   map[string]*clientEntry
	lastSweep time.Time
	now       func() time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientRateLimiter perSecond <= 0 时不限流
func NewClientRateLimiter(perSecond float64, burst int) *ClientRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ClientRateLimiter{
		limit:      rate.Limit(perSecond),
		burst:      burst,
		ttl:        10 * time.Minute,
		sweepEvery: time.Minute,
		clients:    make(map[string]*clientEntry),
		now:        time.Now,
	}
}

// Allow 检查 key 是否还有令牌
func (r *ClientRateLimiter) Allow(key string) bool {
	if r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	now := r.now()
	entry, ok := r.clients[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = entry
	}
	entry.lastSeen = now
	r.cleanupLocked(now)
	r.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// cleanupLocked 清理长时间未访问的客户端，两次清理至少间隔 sweepEvery
func (r *ClientRateLimiter) cleanupLocked(now time.Time) {
	if len(r.clients) < 1024 || now.Sub(r.lastSweep) < r.sweepEvery {
		return
	}
	r.lastSweep = now
	for key, entry := range r.clients {
		if now.Sub(entry.lastSeen) > r.ttl {
			delete(r.clients, key)
		}
	}
}

// ==================== Gin 中间件 ====================

// RateLimit 超出限额返回 429
func RateLimit(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.Response{
				Code:    http.StatusTooManyRequests,
				Message: "请求过于频繁，请稍后再试",
			})
			return
		}
		c.Next()
	}
}
