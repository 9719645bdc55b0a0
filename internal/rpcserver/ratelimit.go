package rpcserver

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimitResult is the outcome of one limiter check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter decides whether an airdrop to key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*RateLimitResult, error)
}

// MemoryLimiter is a per-key token bucket held in process memory.
type MemoryLimiter struct {
	refill time.Duration // time to earn one token
	burst  float64
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewMemoryLimiter allows burst requests per key, refilling one token every
// refill.
func NewMemoryLimiter(burst int, refill time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		refill:  refill,
		burst:   float64(burst),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes a token for key if one is available.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (*RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.last)
	b.tokens = math.Min(l.burst, b.tokens+float64(elapsed)/float64(l.refill))
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return &RateLimitResult{Allowed: true, Remaining: int64(b.tokens)}, nil
	}

	wait := math.Ceil((1 - b.tokens) * float64(l.refill))
	return &RateLimitResult{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: time.Duration(wait),
	}, nil
}
