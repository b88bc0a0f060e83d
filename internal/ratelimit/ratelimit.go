// Package ratelimit provides fixed-window rate limiting over the cache subsystem.
package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventinvite/eventinvite-go/internal/platform/appctx"
	"github.com/eventinvite/eventinvite-go/internal/platform/cache"
	httpmw "github.com/eventinvite/eventinvite-go/internal/platform/http/middleware"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Config defines rate limiting parameters.
type Config struct {
	// RequestsPerWindow is the maximum requests allowed per window.
	RequestsPerWindow int64

	// Window is the time window for rate limiting.
	Window time.Duration

	// KeyPrefix distinguishes limiter scopes sharing one cache backend.
	KeyPrefix string
}

// DefaultConfig returns defaults suitable for the public RSVP surface.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:public:",
	}
}

// Limiter provides rate limiting using a cache backend.
type Limiter struct {
	counter cache.Counter
	config  *Config
}

// New creates a new rate limiter.
func New(counter cache.Counter, cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Limiter{
		counter: counter,
		config:  cfg,
	}
}

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Allow records a request for the given key and reports whether it is within
// quota.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, err := l.counter.Increment(ctx, l.config.KeyPrefix+key, 1, l.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   time.Now().Add(l.config.Window),
	}, nil
}

// Reset clears the rate limit for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.counter.Reset(ctx, l.config.KeyPrefix+key)
}

// Middleware returns an HTTP middleware that applies rate limiting per client
// address. Counter backend errors fail open.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := httpmw.ClientIP(r)
		result, err := l.Allow(r.Context(), key)
		if err != nil {
			appctx.GetLogger(r.Context()).Warn("rate limit backend error", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.config.RequestsPerWindow, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetAt).Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","description":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
