// Package ratelimit provides fixed-window request limiters for the gate's
// control surface. Limiting protects the custody backend and the ledger
// mirror from request floods; it is not an authorization mechanism.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"settlegate/internal/domain"
)

type memoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

type window struct {
	count int
	endAt time.Time
}

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

// NewMemoryLimiter builds a single-process limiter. Suitable for one gated
// instance or for tests; multi-instance deployments need the redis limiter
// so all instances share counters.
func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &memoryLimiter{
		now:     cfg.Now,
		windows: make(map[string]*window),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, dur time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && now.After(w.endAt) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.expire(now)
		}
		if len(m.windows) >= m.maxKeys {
			return domain.RateLimitDecision{}, errors.New("rate limiter capacity exceeded")
		}
		w = &window{endAt: now.Add(dur)}
		m.windows[key] = w
	}

	if w.count < limit {
		w.count++
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - w.count,
			ResetAt:   w.endAt,
		}, nil
	}
	return domain.RateLimitDecision{
		Allowed:   false,
		Limit:     limit,
		Remaining: 0,
		ResetAt:   w.endAt,
	}, nil
}

func (m *memoryLimiter) expire(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.endAt) {
			delete(m.windows, key)
		}
	}
}
