// Package ratelimiter はクライアントごとのリクエスト頻度制限を提供します。
package ratelimiter

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"digitpad/internal/api"
)

// idleTTL を超えてアクセスのないクライアントのリミッターは破棄します。
const idleTTL = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter はクライアントキー（IPアドレス）ごとにトークンバケットを保持します。
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter は毎秒 rps 件、最大 burst 件まで許可するRateLimiterを生成します。
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow はキーのリクエストを1件消費できればtrueを返します。
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < time.Minute {
		return
	}
	rl.lastSweep = now
	for k, c := range rl.clients {
		if now.Sub(c.lastSeen) > idleTTL {
			delete(rl.clients, k)
		}
	}
}

// Middleware は制限を超えたリクエストを 429 で拒否するginミドルウェアを返します。
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return rl.MiddlewareFunc(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{Error: "too many requests"})
	})
}

// MiddlewareFunc は制限を超えたリクエストを reject に渡すginミドルウェアを返します。
// Retry-After ヘッダーは設定済みで、reject は 429 を書いて中断する責任を持ちます。
func (rl *RateLimiter) MiddlewareFunc(reject gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			slog.Warn("rate limit exceeded", "client_ip", ip, "path", c.FullPath())
			c.Header("Retry-After", "1")
			reject(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
