package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func serve(mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	return rec
}

func TestNew_PassThroughWithoutRedis(t *testing.T) {
	t.Parallel()

	rec := serve(New(Config{Limit: 1, Window: time.Minute}, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestNew_FailsOpenWhenRedisDown(t *testing.T) {
	t.Parallel()

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	rec := serve(New(Config{Limit: 1, Window: time.Minute}, rdb))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNewRedisClient_EmptyAddr(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewRedisClient("", "", 0))
}

func TestBuildKey(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/login")

	assert.Equal(t, "rl:login:10.0.0.7", buildKey("rl:login", c))

	c.SetPath("/api/login")
	assert.Equal(t, "rl:login:10.0.0.7", buildKey("rl:login", c))
}

type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	ttl  time.Duration
	err  error
}

func (m *memCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	if m.hits == nil {
		m.hits = map[string]int64{}
	}
	m.hits[key]++
	ttl := m.ttl
	if ttl == 0 {
		ttl = window
	}
	return m.hits[key], ttl, nil
}

func TestNewWithCounter_BlocksOverLimit(t *testing.T) {
	t.Parallel()

	counter := &memCounter{ttl: 41500 * time.Millisecond}
	mw := NewWithCounter(Config{Limit: 2, Window: time.Minute, Prefix: "rl:login"}, counter)

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.POST("/api/login", ok, mw)
	e.POST("/login", ok, mw)

	hit := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := hit("/api/login", "10.0.0.7")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = hit("/login", "10.0.0.7")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = hit("/api/login", "10.0.0.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"message":"Too many requests"}`, rec.Body.String())

	rec = hit("/login", "10.0.0.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = hit("/login", "10.0.0.8")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, map[string]int64{"rl:login:10.0.0.7": 4, "rl:login:10.0.0.8": 1}, counter.hits)
}

func TestNewWithCounter_FailsOpen(t *testing.T) {
	t.Parallel()

	mw := NewWithCounter(Config{Limit: 1, Window: time.Minute}, &memCounter{err: errors.New("down")})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(mw).Code)
	}
}
