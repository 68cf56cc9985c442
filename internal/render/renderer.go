// Package render wraps the headless-browser collaborator behind the narrow
// render(url) contract and decides when a render pass is worth the cost.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/metrics"
)

// ErrDisabled indicates rendering has been disabled via configuration.
var ErrDisabled = errors.New("renderer disabled")

// Result is the outcome of one render pass.
type Result struct {
	HTML         string `json:"html"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	RenderTimeMS int64  `json:"render_time_ms"`
}

// Renderer executes a page's JavaScript and captures the resulting DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (Result, error)
	Close(ctx context.Context) error
}

// Config controls the chromedp pool.
type Config struct {
	UserAgent  string
	MaxWorkers int
	NavTimeout time.Duration
}

// ChromedpRenderer renders pages using headless Chrome. Each worker slot
// holds one browser tab; slot count caps concurrent renders.
type ChromedpRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	timeout         time.Duration
	userAgent       string
	logger          *zap.Logger
}

// New creates a renderer backed by a warm headless Chrome instance.
func New(cfg Config, logger *zap.Logger) (*ChromedpRenderer, error) {
	if cfg.MaxWorkers <= 0 {
		return nil, ErrDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxWorkers),
		timeout:         cfg.NavTimeout,
		userAgent:       cfg.UserAgent,
		logger:          logger,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (r *ChromedpRenderer) Close(context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Render executes the page with JavaScript enabled and returns the DOM
// snapshot. Render failures are returned in the Result rather than as
// errors so callers can persist the outcome.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string) (Result, error) {
	if r == nil {
		return Result{}, ErrDisabled
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
	defer func() { <-r.sem }()

	start := time.Now()
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	elapsed := func() int64 { return time.Since(start).Milliseconds() }
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		metrics.ObserveRender("error")
		r.logger.Warn("render failed", zap.String("url", rawURL), zap.Error(err))
		return Result{Error: err.Error(), RenderTimeMS: elapsed()}, nil
	}

	metrics.ObserveRender("ok")
	return Result{
		HTML:         html,
		Success:      true,
		RenderTimeMS: elapsed(),
	}, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
