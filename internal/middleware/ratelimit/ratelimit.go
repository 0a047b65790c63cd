package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/affiliate_catalog/internal/logging"
)

type Config struct {
	Limit  int
	Window time.Duration
	Prefix string
}

// fixed window counter; returns {count, pttl}
var windowScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return { n, ttl }
`)

// Counter bumps the hit count for key inside a fixed window and reports how
// long that window still has to run.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

type redisCounter struct {
	rdb *redis.Client
}

func (r redisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	vals, err := windowScript.Run(ctx, r.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("window script returned %d values", len(vals))
	}
	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}

// NewRedisClient returns nil when addr is empty or the server does not answer,
// which turns the limiter into a pass-through.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis_unavailable", "addr", addr, "reason", "login rate limiting disabled", "error", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// New limits requests per client IP. Redis errors let the request through.
func New(cfg Config, rdb *redis.Client) echo.MiddlewareFunc {
	if rdb == nil {
		return NewWithCounter(cfg, nil)
	}
	return NewWithCounter(cfg, redisCounter{rdb: rdb})
}

// NewWithCounter is New over any window counter. Every route the middleware is
// attached to draws from the same per-IP budget.
func NewWithCounter(cfg Config, counter Counter) echo.MiddlewareFunc {
	if counter == nil || cfg.Limit <= 0 || cfg.Window <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := buildKey(cfg.Prefix, c)

			count, ttl, err := counter.Hit(ctx, key, cfg.Window)
			if err != nil {
				logging.FromContext(ctx).Warn("ratelimit_error", "reason", "counter failed, allowing request", "error", err)
				return next(c)
			}

			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				retry := int64(math.Ceil(ttl.Seconds()))
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.FormatInt(retry, 10))
				logging.FromContext(ctx).Warn("ratelimit_exceeded", "status", 429, "key", key)
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}

func buildKey(prefix string, c echo.Context) string {
	return prefix + ":" + c.RealIP()
}
