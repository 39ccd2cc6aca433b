package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig configures the per-client token bucket. Buckets idle for
// longer than IdleTTL are dropped.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	IdleTTL           time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           10 * time.Minute,
	}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

type limiter struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newLimiter(cfg RateLimitConfig, now func() time.Time) *limiter {
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &limiter{cfg: cfg, buckets: make(map[string]*bucket), lastSweep: now(), now: now}
}

// take spends one token for key. It returns the tokens left and, when the
// request is refused, how long until a token is available.
func (l *limiter) take(key string) (remaining int, wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.cfg.IdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	burst := float64(l.cfg.BurstSize)
	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: burst, seen: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(burst, b.tokens+now.Sub(b.seen).Seconds()*l.cfg.RequestsPerSecond)
	b.seen = now

	if b.tokens < 1 {
		if l.cfg.RequestsPerSecond <= 0 {
			return 0, time.Second, false
		}
		return 0, time.Duration((1 - b.tokens) / l.cfg.RequestsPerSecond * float64(time.Second)), false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit throttles requests per client IP and answers 429 with a
// Retry-After header when the bucket is empty.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(newLimiter(cfg, time.Now))
}

func rateLimit(l *limiter) echo.MiddlewareFunc {
	limit := strconv.Itoa(l.cfg.BurstSize)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			remaining, wait, ok := l.take(c.RealIP())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests,
					fmt.Sprintf("Request was throttled. Expected available in %d seconds.", secs))
			}
			return next(c)
		}
	}
}
