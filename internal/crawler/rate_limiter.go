package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests to the same host by a minimum delay. A zero
// delay disables limiting.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	delays   map[string]time.Duration
	mu       sync.RWMutex
	delay    time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(defaultDelay time.Duration) *RateLimiter {
	if defaultDelay < 0 {
		defaultDelay = 0
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delays:   make(map[string]time.Duration),
		delay:    defaultDelay,
	}
}

// Wait blocks until a request to the URL's host may proceed or ctx is done
func (r *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}
	return r.getLimiter(parsedURL.Host).Wait(ctx)
}

// SetDomainDelay raises the delay for one host, e.g. from a robots.txt
// Crawl-delay. The configured default is never lowered.
func (r *RateLimiter) SetDomainDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if delay < r.delay {
		delay = r.delay
	}
	r.delays[host] = delay
	if limiter, ok := r.limiters[host]; ok {
		limiter.SetLimit(rate.Every(delay))
		return
	}
	r.limiters[host] = rate.NewLimiter(rate.Every(delay), 1)
}

// Delay returns the effective delay for a host
func (r *RateLimiter) Delay(host string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.delays[host]; ok {
		return d
	}
	return r.delay
}

// getLimiter gets or creates a rate limiter for a host
func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again in case another goroutine created it
	if limiter, exists := r.limiters[host]; exists {
		return limiter
	}

	// rate.Every(0) is rate.Inf
	limiter = rate.NewLimiter(rate.Every(r.delay), 1)
	r.limiters[host] = limiter

	return limiter
}
