package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/metrics"
)

type RateLimit interface {
	Allow(addr string) bool
	// RetryAfter is how long a rejected client waits for its next token.
	RetryAfter() time.Duration
}

// staleAfter is how many windows an idle client is remembered.
const staleAfter = 3

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter gives every client maxRequests per window, refilled
// continuously.
type TokenBucketLimiter struct {
	maxRequests int
	window      time.Duration
	clients     map[string]*client
	lastSweep   time.Time
	mutex       sync.Mutex
}

func New(maxRequests int, interval time.Duration) RateLimit {
	return &TokenBucketLimiter{
		maxRequests: maxRequests,
		window:      interval,
		clients:     make(map[string]*client),
		lastSweep:   time.Now(),
	}
}

func (rl *TokenBucketLimiter) Allow(addr string) bool {
	if rl.maxRequests <= 0 {
		return false
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	rl.sweep(now)

	c := rl.clients[addr]
	if c == nil {
		c = &client{limiter: rate.NewLimiter(rate.Every(rl.RetryAfter()), rl.maxRequests)}
		rl.clients[addr] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// RetryAfter is the refill interval of one token. A limiter that denies
// everything reports the whole window.
func (rl *TokenBucketLimiter) RetryAfter() time.Duration {
	if rl.maxRequests <= 0 {
		return rl.window
	}
	return rl.window / time.Duration(rl.maxRequests)
}

func (rl *TokenBucketLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now

	for addr, c := range rl.clients {
		if now.Sub(c.lastSeen) > staleAfter*rl.window {
			delete(rl.clients, addr)
		}
	}
}

// Middleware rejects requests over the limit with 429. Clients are keyed by
// the remote IP, so chi's RealIP should run first.
func Middleware(rl RateLimit, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientIP(r)
			if !rl.Allow(addr) {
				logger.Warn("Rate limit exceeded", map[string]interface{}{
					"remote_addr": addr,
					"route":       route,
				})
				metrics.RateLimited.WithLabelValues(route).Inc()
				w.Header().Set("Retry-After", retryAfterSeconds(rl.RetryAfter()))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds renders d for the Retry-After header, rounded up to
// whole seconds and never below one.
func retryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
