// Package ratelimit implements per-domain request pacing for the crawler.
// Two variants are provided: a fixed limiter enforcing a constant minimum
// interval per domain, and an adaptive limiter that speeds up on success and
// backs off when a domain pushes back.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests per target domain. Wait suspends the caller until
// the next request to the domain is safe and records it; WaitTime and Reset
// are non-blocking introspection/administrative helpers.
type Limiter interface {
	Wait(ctx context.Context, domain string) error
	WaitTime(domain string) time.Duration
	Reset(domain string)
}

// Feedback receives fetch outcomes so an adaptive limiter can tune itself.
// The fixed limiter ignores feedback.
type Feedback interface {
	OnSuccess(domain string)
	OnRateLimited(domain string)
	OnServerError(domain string)
}

// Domain extracts the limiter key from a raw URL. Bare hostnames pass
// through unchanged.
func Domain(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.ToLower(u.Hostname())
}

// Fixed enforces a constant per-domain rate. Each domain gets an isolated
// token bucket (burst 1), so consecutive waits on one domain are spaced at
// least 1/R apart while distinct domains never contend.
type Fixed struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
}

// NewFixed creates a Fixed limiter targeting rps requests per second.
func NewFixed(rps float64) *Fixed {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	return &Fixed{
		limiters: make(map[string]*rate.Limiter),
		rps:      r,
	}
}

func (f *Fixed) limiter(domain string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(f.rps, 1)
		f.limiters[domain] = lim
	}
	return lim
}

// Wait blocks until a token is available for the domain.
func (f *Fixed) Wait(ctx context.Context, domain string) error {
	if err := f.limiter(domain).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", domain, err)
	}
	return nil
}

// WaitTime reports how long Wait would block right now without consuming a
// token.
func (f *Fixed) WaitTime(domain string) time.Duration {
	lim := f.limiter(domain)
	now := time.Now()
	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	res.CancelAt(now)
	return delay
}

// Reset forgets the domain's request history.
func (f *Fixed) Reset(domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.limiters, domain)
}

// OnSuccess implements Feedback as a no-op.
func (f *Fixed) OnSuccess(string) {}

// OnRateLimited implements Feedback as a no-op.
func (f *Fixed) OnRateLimited(string) {}

// OnServerError implements Feedback as a no-op.
func (f *Fixed) OnServerError(string) {}
