// Package app assembles the service from configuration and owns its
// lifecycle: startup recovery, the HTTP server, the invocation subscription,
// the cron scheduler, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/api"
	"github.com/openhire/jobradar/internal/blob"
	gcsblob "github.com/openhire/jobradar/internal/blob/gcs"
	localblob "github.com/openhire/jobradar/internal/blob/local"
	memoryblob "github.com/openhire/jobradar/internal/blob/memory"
	"github.com/openhire/jobradar/internal/clock/system"
	"github.com/openhire/jobradar/internal/config"
	"github.com/openhire/jobradar/internal/crawler"
	"github.com/openhire/jobradar/internal/discovery"
	"github.com/openhire/jobradar/internal/extract"
	"github.com/openhire/jobradar/internal/pipeline"
	"github.com/openhire/jobradar/internal/queue"
	"github.com/openhire/jobradar/internal/ratelimit"
	"github.com/openhire/jobradar/internal/render"
	"github.com/openhire/jobradar/internal/scheduler"
	"github.com/openhire/jobradar/internal/store/postgres"
)

// App contains the service's wired dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	blobStore blob.Store
	gcsStore  *gcsblob.Store
	provider  queue.Provider
	renderer  render.Renderer
	llmClient extract.ModelClient
	orch      *pipeline.Orchestrator
	apiServer *api.Server
	sched     *scheduler.Scheduler
}

// New builds the full service graph from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	pool, err := postgres.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool

	companies := postgres.NewCompanyStore(pool)
	jobs := postgres.NewJobStore(pool)
	snapshots := postgres.NewSnapshotStore(pool)
	discoveryStore := postgres.NewDiscoveryStore(pool)
	runs := postgres.NewRunStore(pool)

	if err := a.buildBlobStore(ctx); err != nil {
		a.pool.Close()
		return nil, err
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Adaptive {
		limiter = ratelimit.NewAdaptive(ratelimit.AdaptiveConfig{
			InitialRPS:    cfg.RateLimit.RPS,
			MinRPS:        cfg.RateLimit.MinRPS,
			MaxRPS:        cfg.RateLimit.MaxRPS,
			SpeedupFactor: cfg.RateLimit.SpeedupFactor,
			BackoffFactor: cfg.RateLimit.BackoffFactor,
		})
	} else {
		limiter = ratelimit.NewFixed(cfg.RateLimit.RPS)
	}

	robots := crawler.NewRobotsEnforcer(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, logger)
	fetcher := crawler.New(crawler.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		Timeout:       cfg.Crawler.Timeout,
		MaxRetries:    cfg.Crawler.MaxRetries,
		BackoffBase:   cfg.Crawler.BackoffBase,
		RetryAfterMax: cfg.Crawler.RetryAfterMax,
		MaxPageBytes:  cfg.Crawler.MaxPageBytes,
	}, robots, limiter, logger)

	detector := render.NewDetector(cfg.Render.MinHTMLBytes, cfg.Render.Selectors, cfg.Render.Keywords)
	if cfg.Render.Enabled {
		renderer, err := render.New(render.Config{
			UserAgent:  cfg.Crawler.UserAgent,
			MaxWorkers: cfg.Render.MaxWorkers,
			NavTimeout: cfg.Render.NavTimeout,
		}, logger)
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("start renderer: %w", err)
		}
		a.renderer = renderer
	}

	var llm *extract.LLM
	if cfg.LLM.Enabled {
		client, err := extract.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("start llm client: %w", err)
		}
		a.llmClient = client
		llm = extract.NewLLM(client, logger)
	}
	registry := extract.NewRegistry(nil, llm, logger)

	clk := system.New()
	sources := buildSources(cfg.Discovery, cfg.Crawler.UserAgent, logger)
	disco := discovery.NewOrchestrator(sources, companies, discoveryStore, clk, logger)
	processor := discovery.NewProcessor(fetcher, companies, discoveryStore, clk, logger)

	a.orch = pipeline.New(pipeline.Deps{
		Runs:      runs,
		Companies: companies,
		Jobs:      jobs,
		Snapshots: snapshots,
		Discovery: disco,
		Queue:     processor,
		Fetcher:   fetcher,
		Renderer:  a.renderer,
		Detector:  detector,
		Extractor: registry,
		Blobs:     a.blobStore,
		Clock:     clk,
		Logger:    logger,
	})

	if err := a.buildProvider(ctx); err != nil {
		a.closePartial()
		return nil, err
	}

	a.apiServer = api.NewServer(a.orch, runs, companies, jobs, logger)

	sched, err := scheduler.New(cfg.Schedules, a.orch, logger)
	if err != nil {
		a.closePartial()
		return nil, err
	}
	a.sched = sched

	return a, nil
}

func (a *App) buildBlobStore(ctx context.Context) error {
	switch a.cfg.Blob.Provider {
	case "gcs":
		store, err := gcsblob.New(ctx, a.cfg.Blob.GCSBucket, a.cfg.Blob.Prefix)
		if err != nil {
			return fmt.Errorf("connect gcs: %w", err)
		}
		a.gcsStore = store
		a.blobStore = store
	case "local":
		store, err := localblob.New(a.cfg.Blob.LocalDir)
		if err != nil {
			return fmt.Errorf("open local blob dir: %w", err)
		}
		a.blobStore = store
	case "memory":
		a.blobStore = memoryblob.New()
	default:
		return fmt.Errorf("unknown blob provider %q", a.cfg.Blob.Provider)
	}
	return nil
}

func (a *App) buildProvider(ctx context.Context) error {
	if !a.cfg.PubSub.Enabled {
		a.provider = queue.NoOpProvider{}
		return nil
	}
	provider, err := queue.NewPubSubProvider(ctx,
		a.cfg.PubSub.ProjectID, a.cfg.PubSub.Topic, a.cfg.PubSub.Subscription, a.logger)
	if err != nil {
		return fmt.Errorf("connect pubsub: %w", err)
	}
	a.provider = provider
	return nil
}

func buildSources(cfg config.DiscoveryConfig, userAgent string, logger *zap.Logger) []discovery.Source {
	var sources []discovery.Source
	if len(cfg.DirectoryURLs) > 0 {
		sources = append(sources, discovery.NewDirectorySource(cfg.DirectoryURLs, nil, logger))
	}
	if len(cfg.AcceleratorURLs) > 0 {
		sources = append(sources, discovery.NewAcceleratorSource(cfg.AcceleratorURLs, nil, logger))
	}
	if len(cfg.AggregatorURLs) > 0 {
		sources = append(sources, discovery.NewAggregatorSource(cfg.AggregatorURLs, nil, logger))
	}
	if len(cfg.GitHubOrgs) > 0 {
		sources = append(sources, discovery.NewGitHubSource(cfg.GitHubOrgs, nil, logger, ""))
	}
	if len(cfg.SeedURLs) > 0 {
		sources = append(sources, discovery.NewLinkCrawlSource(cfg.SeedURLs, cfg.CrawlMaxDepth, userAgent, logger))
	}
	if len(cfg.FundingFeeds) > 0 {
		sources = append(sources, discovery.NewFundingFeedSource(cfg.FundingFeeds, nil, logger))
	}
	if len(cfg.ProbeSlugs) > 0 {
		sources = append(sources, discovery.NewProbeSource(cfg.ProbeSlugs, nil, logger, nil))
	}
	if len(cfg.SearchQueries) > 0 {
		sources = append(sources, discovery.NewSearchSource(cfg.SearchQueries, nil, logger, ""))
	}
	return sources
}

// Run starts the service and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Crashed runs from a previous process get an explicit terminal state
	// before anything new starts.
	if _, err := a.orch.RecoverOrphans(ctx); err != nil {
		return fmt.Errorf("recover orphaned runs: %w", err)
	}

	a.sched.Start()

	go func() {
		if err := a.provider.Receive(ctx, a.orch.HandleInvocation); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("invocation receive loop ended", zap.Error(err))
			stop()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close(shutdownCtx)
}

// Close gracefully shuts down every component.
func (a *App) Close(ctx context.Context) error {
	if a.sched != nil {
		if err := a.sched.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop failed", zap.Error(err))
		}
	}
	a.closePartial()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closePartial() {
	if a.renderer != nil {
		if err := a.renderer.Close(context.Background()); err != nil {
			a.logger.Warn("renderer close failed", zap.Error(err))
		}
	}
	if a.llmClient != nil {
		if err := a.llmClient.Close(); err != nil {
			a.logger.Warn("llm client close failed", zap.Error(err))
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn("queue provider close failed", zap.Error(err))
		}
	}
	if a.gcsStore != nil {
		if err := a.gcsStore.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
