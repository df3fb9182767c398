package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Bucket names used by the HTTP transport.
const (
	BucketPublic  = "public"
	BucketPrivate = "private"
)

// RateLimiter throttles outgoing requests with one global limit and optional
// tighter limits per bucket. A request waits on its bucket first, then on the
// global limit.
type RateLimiter struct {
	global  *rate.Limiter
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	metrics *Metrics
}

// Metrics tracks statistics about rate limiter usage.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
}

// New creates a RateLimiter allowing requests per period with a burst of requests.
func New(requests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		global:  newLimiter(requests, period),
		buckets: make(map[string]*rate.Limiter),
		metrics: &Metrics{},
	}
}

func newLimiter(requests int, period time.Duration) *rate.Limiter {
	if requests <= 0 || period <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(period/time.Duration(requests)), requests)
}

// SetBucketLimit installs or replaces the limit for bucket.
func (r *RateLimiter) SetBucketLimit(bucket string, requests int, period time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets[bucket] = newLimiter(requests, period)
}

// Wait blocks until both bucket and the global limit allow a request or ctx ends.
// Buckets without a configured limit only wait on the global limit.
func (r *RateLimiter) Wait(ctx context.Context, bucket string) error {
	r.metrics.totalRequests.Add(1)

	if b := r.bucket(bucket); b != nil {
		if err := b.Wait(ctx); err != nil {
			r.metrics.deniedRequests.Add(1)
			return err
		}
	}
	if err := r.global.Wait(ctx); err != nil {
		r.metrics.deniedRequests.Add(1)
		return err
	}
	r.metrics.allowedRequests.Add(1)
	return nil
}

// Allow reports whether a request in bucket may proceed immediately.
func (r *RateLimiter) Allow(bucket string) bool {
	r.metrics.totalRequests.Add(1)

	allowed := true
	if b := r.bucket(bucket); b != nil {
		allowed = b.Allow()
	}
	if allowed {
		allowed = r.global.Allow()
	}
	if allowed {
		r.metrics.allowedRequests.Add(1)
	} else {
		r.metrics.deniedRequests.Add(1)
	}
	return allowed
}

func (r *RateLimiter) bucket(name string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets[name]
}

// Metrics returns a snapshot of the current rate limiter statistics.
func (r *RateLimiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:   r.metrics.totalRequests.Load(),
		AllowedRequests: r.metrics.allowedRequests.Load(),
		DeniedRequests:  r.metrics.deniedRequests.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of rate limiter statistics.
type MetricsSnapshot struct {
	TotalRequests   int64
	AllowedRequests int64
	DeniedRequests  int64
}
