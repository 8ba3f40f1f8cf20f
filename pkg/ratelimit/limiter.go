package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter holds one token bucket per upstream API.
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter registers (or replaces) the limiter for name.
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the named limiter allows an event or ctx is done.
// Unknown names are not limited.
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", name, err)
	}
	return nil
}

// Allow reports whether an event may happen now.
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return true
	}
	return limiter.Allow()
}

const (
	LimiterTwitter   = "twitter"
	LimiterLinkedIn  = "linkedin"
	LimiterFacebook  = "facebook"
	LimiterInstagram = "instagram"
	LimiterQStash    = "qstash"
)

// NewDefaultLimiter smooths dispatch bursts so that staggered deliveries
// landing in the same second do not hit a platform all at once.
func NewDefaultLimiter() *MultiLimiter {
	m := NewMultiLimiter()

	m.AddLimiter(LimiterTwitter, 1, 20)
	m.AddLimiter(LimiterLinkedIn, 1, 10)

	// Graph API (Facebook pages and Instagram business accounts)
	m.AddLimiter(LimiterFacebook, 2, 20)
	m.AddLimiter(LimiterInstagram, 2, 20)

	m.AddLimiter(LimiterQStash, 50, 100)

	return m
}
