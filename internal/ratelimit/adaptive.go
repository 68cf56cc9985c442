package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// serverErrorFactor is the milder backoff applied on 5xx responses,
// compared to the configured factor used for explicit rate limiting.
const serverErrorFactor = 0.75

// AdaptiveConfig bounds and tunes the adaptive limiter.
type AdaptiveConfig struct {
	InitialRPS    float64
	MinRPS        float64
	MaxRPS        float64
	SpeedupFactor float64 // applied per success, > 1
	BackoffFactor float64 // applied per 429, in (0,1)
}

type domainState struct {
	limiter *rate.Limiter
	rps     float64
}

// Adaptive maintains a per-domain rate within [MinRPS, MaxRPS], speeding up
// on success and backing off on pushback. Each domain's state is guarded so
// the read-adjust-wait cycle is atomic per domain; distinct domains never
// contend beyond the map lookup.
type Adaptive struct {
	mu      sync.Mutex
	domains map[string]*domainState
	cfg     AdaptiveConfig
}

// NewAdaptive creates an Adaptive limiter. Zero-valued config fields get
// conservative defaults.
func NewAdaptive(cfg AdaptiveConfig) *Adaptive {
	if cfg.MinRPS <= 0 {
		cfg.MinRPS = 0.1
	}
	if cfg.MaxRPS < cfg.MinRPS {
		cfg.MaxRPS = cfg.MinRPS
	}
	if cfg.InitialRPS <= 0 {
		cfg.InitialRPS = cfg.MinRPS
	}
	if cfg.InitialRPS > cfg.MaxRPS {
		cfg.InitialRPS = cfg.MaxRPS
	}
	if cfg.SpeedupFactor <= 1 {
		cfg.SpeedupFactor = 1.1
	}
	if cfg.BackoffFactor <= 0 || cfg.BackoffFactor >= 1 {
		cfg.BackoffFactor = 0.5
	}
	return &Adaptive{
		domains: make(map[string]*domainState),
		cfg:     cfg,
	}
}

func (a *Adaptive) state(domain string) *domainState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.domains[domain]
	if !ok {
		st = &domainState{
			limiter: rate.NewLimiter(rate.Limit(a.cfg.InitialRPS), 1),
			rps:     a.cfg.InitialRPS,
		}
		a.domains[domain] = st
	}
	return st
}

// Wait blocks until the domain's current rate admits the next request.
func (a *Adaptive) Wait(ctx context.Context, domain string) error {
	if err := a.state(domain).limiter.Wait(ctx); err != nil {
		return fmt.Errorf("adaptive rate limit wait for %s: %w", domain, err)
	}
	return nil
}

// WaitTime reports the current delay for the domain without consuming a
// token.
func (a *Adaptive) WaitTime(domain string) time.Duration {
	lim := a.state(domain).limiter
	now := time.Now()
	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	res.CancelAt(now)
	return delay
}

// Reset forgets the domain, returning it to the initial rate on next use.
func (a *Adaptive) Reset(domain string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.domains, domain)
}

// Rate returns the domain's current target rate in requests per second.
func (a *Adaptive) Rate(domain string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.domains[domain]; ok {
		return st.rps
	}
	return a.cfg.InitialRPS
}

func (a *Adaptive) adjust(domain string, factor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.domains[domain]
	if !ok {
		st = &domainState{
			limiter: rate.NewLimiter(rate.Limit(a.cfg.InitialRPS), 1),
			rps:     a.cfg.InitialRPS,
		}
		a.domains[domain] = st
	}
	next := st.rps * factor
	if next > a.cfg.MaxRPS {
		next = a.cfg.MaxRPS
	}
	if next < a.cfg.MinRPS {
		next = a.cfg.MinRPS
	}
	st.rps = next
	st.limiter.SetLimit(rate.Limit(next))
}

// OnSuccess nudges the domain's rate up toward MaxRPS.
func (a *Adaptive) OnSuccess(domain string) {
	a.adjust(domain, a.cfg.SpeedupFactor)
}

// OnRateLimited applies the configured backoff, floored at MinRPS.
func (a *Adaptive) OnRateLimited(domain string) {
	a.adjust(domain, a.cfg.BackoffFactor)
}

// OnServerError applies a milder backoff than an explicit 429.
func (a *Adaptive) OnServerError(domain string) {
	a.adjust(domain, serverErrorFactor)
}
