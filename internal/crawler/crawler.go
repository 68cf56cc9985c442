// Package crawler fetches career pages politely: robots.txt gate, per-domain
// rate limiting, and bounded retry with exponential backoff.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openhire/jobradar/internal/metrics"
	"github.com/openhire/jobradar/internal/ratelimit"
)

// ErrRobotsDenied marks a URL disallowed by the host's robots.txt. It is
// never retried.
var ErrRobotsDenied = errors.New("disallowed by robots.txt")

// Config controls fetch behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
	RetryAfterMax time.Duration
	MaxPageBytes  int64
}

// Result is the outcome of one fetch. StatusCode 0 means all attempts were
// exhausted without an HTTP response.
type Result struct {
	URL        string
	Body       []byte
	StatusCode int
	Duration   time.Duration
}

// Crawler owns the robots cache and rate limiter for its process lifetime.
type Crawler struct {
	client  *http.Client
	robots  RobotsPolicy
	limiter ratelimit.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Crawler. The limiter may also implement
// ratelimit.Feedback to receive fetch outcomes.
func New(cfg Config, robots RobotsPolicy, limiter ratelimit.Limiter, logger *zap.Logger) *Crawler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.RetryAfterMax <= 0 {
		cfg.RetryAfterMax = time.Minute
	}
	if cfg.MaxPageBytes <= 0 {
		cfg.MaxPageBytes = 5 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		client:  &http.Client{Timeout: cfg.Timeout},
		robots:  robots,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Fetch retrieves one URL. Robots denial returns ErrRobotsDenied with status
// 403 and no network call. Retryable failures (429, 5xx, transport errors)
// are retried with backoff up to the attempt cap; other 4xx return
// immediately. A 429 sleep consumes one of the bounded attempts.
func (c *Crawler) Fetch(ctx context.Context, rawURL string) (Result, error) {
	if c.robots != nil && !c.robots.Allowed(ctx, rawURL) {
		metrics.ObserveRobotsDenied()
		c.logger.Debug("robots denied", zap.String("url", rawURL))
		return Result{URL: rawURL, StatusCode: http.StatusForbidden}, ErrRobotsDenied
	}

	domain := ratelimit.Domain(rawURL)
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx, domain); err != nil {
			return Result{URL: rawURL}, err
		}
		metrics.ObserveRateLimitDelay(domain, time.Since(waitStart))
	}

	feedback, _ := c.limiter.(ratelimit.Feedback)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		res, err := c.doRequest(ctx, rawURL)
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{URL: rawURL}, err
			}
			metrics.ObserveFetchRetry(domain, "transport")
			if sleepErr := c.sleep(ctx, c.backoff(attempt)); sleepErr != nil {
				return Result{URL: rawURL}, sleepErr
			}
			continue
		}

		metrics.ObserveFetch(domain, res.StatusCode, res.Duration)
		switch {
		case res.StatusCode == http.StatusOK:
			if feedback != nil {
				feedback.OnSuccess(domain)
			}
			return res.Result, nil
		case res.StatusCode == http.StatusTooManyRequests:
			if feedback != nil {
				feedback.OnRateLimited(domain)
			}
			metrics.ObserveFetchRetry(domain, "429")
			lastErr = fmt.Errorf("rate limited by %s", domain)
			if sleepErr := c.sleep(ctx, res.retryAfter); sleepErr != nil {
				return Result{URL: rawURL}, sleepErr
			}
		case res.StatusCode >= 500:
			if feedback != nil {
				feedback.OnServerError(domain)
			}
			metrics.ObserveFetchRetry(domain, "5xx")
			lastErr = fmt.Errorf("server error %d from %s", res.StatusCode, domain)
			if sleepErr := c.sleep(ctx, c.backoff(attempt)); sleepErr != nil {
				return Result{URL: rawURL}, sleepErr
			}
		default:
			// Remaining 4xx (and odd 3xx the client didn't follow) are
			// permanent for this URL.
			return Result{URL: rawURL, StatusCode: res.StatusCode, Duration: res.Duration}, nil
		}
	}

	c.logger.Warn("fetch attempts exhausted",
		zap.String("url", rawURL),
		zap.Int("attempts", c.cfg.MaxRetries),
		zap.Error(lastErr),
	)
	return Result{URL: rawURL}, fmt.Errorf("fetch %s: attempts exhausted: %w", rawURL, lastErr)
}

type response struct {
	Result
	retryAfter time.Duration
}

func (c *Crawler) doRequest(ctx context.Context, rawURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("failed to close response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxPageBytes))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}

	return response{
		Result: Result{
			URL:        rawURL,
			Body:       body,
			StatusCode: resp.StatusCode,
			Duration:   time.Since(start),
		},
		retryAfter: c.parseRetryAfter(resp.Header.Get("Retry-After")),
	}, nil
}

// parseRetryAfter honors both delta-seconds and HTTP-date forms, clamped to
// RetryAfterMax. Absent or unparseable headers fall back to BackoffBase.
func (c *Crawler) parseRetryAfter(header string) time.Duration {
	if header == "" {
		return c.cfg.BackoffBase
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		if d > c.cfg.RetryAfterMax {
			return c.cfg.RetryAfterMax
		}
		return d
	}
	if when, err := http.ParseTime(header); err == nil {
		d := time.Until(when)
		if d < 0 {
			return c.cfg.BackoffBase
		}
		if d > c.cfg.RetryAfterMax {
			return c.cfg.RetryAfterMax
		}
		return d
	}
	return c.cfg.BackoffBase
}

func (c *Crawler) backoff(attempt int) time.Duration {
	return c.cfg.BackoffBase * (1 << attempt)
}

func (c *Crawler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch backoff: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// FetchMultiple fans out independent fetches bounded by concurrency and
// returns a url-keyed result map. No ordering is guaranteed between URLs;
// per-URL failures are recorded, not propagated.
func (c *Crawler) FetchMultiple(ctx context.Context, urls []string, concurrency int) map[string]Result {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make(map[string]Result, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, u := range urls {
		g.Go(func() error {
			res, err := c.Fetch(gctx, u)
			if err != nil && !errors.Is(err, ErrRobotsDenied) {
				c.logger.Debug("fetch failed", zap.String("url", u), zap.Error(err))
			}
			mu.Lock()
			results[u] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
