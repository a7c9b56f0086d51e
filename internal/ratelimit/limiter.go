// Package ratelimit applies fixed-window per-client limits to abuse-prone
// actions: signup, login, password reset and request submission.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/falconsupport/api/internal/cache"
)

type ActionConfig struct {
	Limit  int64
	Window time.Duration
}

const (
	ActionSignup        = "signup"
	ActionLogin         = "login"
	ActionPasswordReset = "password-reset"
	ActionSubmit        = "submit"
)

var DefaultLimits = map[string]ActionConfig{
	ActionSignup:        {Limit: 5, Window: time.Minute},
	ActionLogin:         {Limit: 10, Window: time.Minute},
	ActionPasswordReset: {Limit: 3, Window: time.Minute},
	ActionSubmit:        {Limit: 20, Window: time.Minute},
}

// Counter is the subset of cache.Store the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type Limiter struct {
	counter Counter
	limits  map[string]ActionConfig
	now     func() time.Time
}

type CheckResult struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
	Limit     int64 `json:"limit"`
}

func NewLimiter(counter Counter, limits map[string]ActionConfig) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Limiter{counter: counter, limits: limits, now: time.Now}
}

func (l *Limiter) Check(ctx context.Context, clientID, action string) (*CheckResult, error) {
	config, ok := l.limits[action]
	if !ok {
		config = ActionConfig{Limit: 100, Window: time.Minute}
	}

	key := cache.RateKey(clientID, action)

	count, err := l.counter.Incr(ctx, key, config.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to increment counter: %w", err)
	}

	ttl, err := l.counter.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get TTL: %w", err)
	}
	if ttl < 0 {
		ttl = config.Window
	}

	remaining := config.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &CheckResult{
		Allowed:   count <= config.Limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl).Unix(),
		Limit:     config.Limit,
	}, nil
}
