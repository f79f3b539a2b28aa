// Package middleware holds echo middleware shared by the HTTP server.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds per-client rate limit settings.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second per client.
	Rate float64

	// Burst is the number of requests a client may make at once.
	Burst int

	// CleanupInterval is how often idle limiters are removed.
	CleanupInterval time.Duration

	// IdleTimeout is how long a limiter may go unused before removal.
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns the default upload rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            2,
		Burst:           10,
		CleanupInterval: 10 * time.Minute,
		IdleTimeout:     time.Hour,
	}
}

// RateLimiter limits requests per client IP using a token bucket
// (golang.org/x/time/rate). Limiters live in memory and are cleaned up
// once idle.
//
// It keys on c.RealIP(). Behind a proxy, configure echo's IPExtractor so
// clients cannot pick their own key through X-Forwarded-For.
type RateLimiter struct {
	limiters sync.Map // IP address -> *limiterEntry
	logger   *slog.Logger
	config   RateLimitConfig
	ctx      context.Context
	cancel   context.CancelFunc
}

// limiterEntry wraps a rate limiter with metadata for cleanup.
// lastAccess is stored as Unix timestamp (int64) for thread-safe atomic access.
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64 // Unix timestamp in seconds
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// Call Shutdown to stop it.
func NewRateLimiter(logger *slog.Logger, config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		logger: logger,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	go rl.cleanupLoop()

	return rl
}

// Middleware rejects requests over the limit with ERATELIMIT and a
// Retry-After header.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limit := fmt.Sprintf("%.0f", rl.config.Rate)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			limiter := rl.GetLimiter(ip)

			c.Response().Header().Set("X-RateLimit-Limit", limit)

			if !limiter.Allow() {
				rl.logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", c.Path()),
					slog.String("method", c.Request().Method))

				c.Response().Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")

				return imgbed.Errorf(imgbed.ERATELIMIT, "Too many uploads, please try again later")
			}

			return next(c)
		}
	}
}

// retryAfter is the whole number of seconds until one token is available.
func (rl *RateLimiter) retryAfter() int {
	if rl.config.Rate <= 0 {
		return 1
	}
	secs := int(1 / rl.config.Rate)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// GetLimiter returns the rate limiter for a given IP address, creating it
// on first use.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	if entry, exists := rl.limiters.Load(ip); exists {
		limEntry := entry.(*limiterEntry)
		limEntry.lastAccess.Store(time.Now().Unix())
		return limEntry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst)

	// LoadOrStore keeps creation race-free.
	entry := &limiterEntry{
		limiter: limiter,
	}
	entry.lastAccess.Store(time.Now().Unix())
	actual, _ := rl.limiters.LoadOrStore(ip, entry)
	return actual.(*limiterEntry).limiter
}

// cleanupLoop periodically removes limiters idle for longer than
// IdleTimeout until Shutdown is called.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := rl.removeIdle(time.Now()); removed > 0 {
				rl.logger.Info("cleaned up old rate limiters",
					slog.Int("removed", removed))
			}
		case <-rl.ctx.Done():
			rl.logger.Debug("rate limiter cleanup goroutine stopping")
			return
		}
	}
}

// removeIdle deletes limiters not used since now minus IdleTimeout.
func (rl *RateLimiter) removeIdle(now time.Time) int {
	var removed int
	cutoff := now.Add(-rl.config.IdleTimeout).Unix()

	rl.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		if entry.lastAccess.Load() < cutoff {
			rl.limiters.Delete(key)
			removed++
		}
		return true
	})

	return removed
}

// Shutdown stops the cleanup goroutine.
func (rl *RateLimiter) Shutdown() {
	if rl.cancel != nil {
		rl.cancel()
	}
}
