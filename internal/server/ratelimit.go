package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter enforces a fixed request budget per client per window
// (default 100 requests per 15 minutes), keyed by client IP.
type rateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	clients map[string]*clientWindow
}

type clientWindow struct {
	count   int
	startAt time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &rateLimiter{
		max:     max,
		window:  window,
		clients: map[string]*clientWindow{},
	}
}

func (r *rateLimiter) allow(clientKey string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.clients[clientKey]
	if !ok || now.Sub(entry.startAt) >= r.window {
		if len(r.clients) > 10000 {
			r.pruneLocked(now)
		}
		r.clients[clientKey] = &clientWindow{count: 1, startAt: now}
		return true
	}
	if entry.count >= r.max {
		return false
	}
	entry.count++
	return true
}

func (r *rateLimiter) pruneLocked(now time.Time) {
	for key, entry := range r.clients {
		if now.Sub(entry.startAt) >= r.window {
			delete(r.clients, key)
		}
	}
}

func (r *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.allow(c.ClientIP(), time.Now()) {
			writeError(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		c.Next()
	}
}
