// Package ratelimit provides the token bucket that throttles scrapes.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket. It starts full, refills continuously at rate
// tokens per second and never holds more than its burst.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	rate       float64
	lastUpdate time.Time
	now        func() time.Time
}

// Stats is a point-in-time view of a bucket.
type Stats struct {
	Available float64 `json:"available"`
	Max       float64 `json:"max"`
	Rate      float64 `json:"rate"`
}

// NewBucket creates a bucket refilling at rate tokens per second.
// A burst of 0 or less means one second's worth of tokens, at least one.
func NewBucket(rate float64, burst int) *Bucket {
	return newBucket(rate, burst, time.Now)
}

func newBucket(rate float64, burst int, now func() time.Time) *Bucket {
	maxTokens := float64(burst)
	if maxTokens <= 0 {
		maxTokens = max(rate, 1)
	}
	return &Bucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		rate:       rate,
		lastUpdate: now(),
		now:        now,
	}
}

// refill must be called with mu held.
func (b *Bucket) refill() {
	t := b.now()
	elapsed := t.Sub(b.lastUpdate)
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.maxTokens, b.tokens+elapsed.Seconds()*b.rate)
	b.lastUpdate = t
}

// Allow takes a token if one is available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RetryAfter is how long until the next token is available.
func (b *Bucket) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 || b.rate <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Stats returns the current state.
func (b *Bucket) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return Stats{Available: b.tokens, Max: b.maxTokens, Rate: b.rate}
}
