// Package pipeline owns run lifecycle: it is the sole writer of run-status
// transitions, drives each stage against the stores, and cascades completed
// stages into their successors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/blob"
	"github.com/openhire/jobradar/internal/crawler"
	"github.com/openhire/jobradar/internal/discovery"
	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/extract"
	"github.com/openhire/jobradar/internal/hash/sha256"
	"github.com/openhire/jobradar/internal/metrics"
	"github.com/openhire/jobradar/internal/normalize"
	"github.com/openhire/jobradar/internal/queue"
	"github.com/openhire/jobradar/internal/render"
	"github.com/openhire/jobradar/internal/store"
)

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// Fetcher is the crawl capability the pipeline needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (crawler.Result, error)
}

// Discoverer runs the discovery sources and records the run.
type Discoverer interface {
	Run(ctx context.Context, only []string) (domain.DiscoveryRun, error)
}

// QueueProcessor validates queued candidates and promotes them to companies.
type QueueProcessor interface {
	Process(ctx context.Context, limit int) (discovery.Outcome, error)
}

// Extractor runs the per-ATS fallback chain over one snapshot's content.
type Extractor interface {
	Extract(ctx context.Context, ats domain.ATSType, req extract.Request) ([]domain.ExtractedJob, string, error)
}

// Deps collects the orchestrator's collaborators. Renderer may be nil when
// rendering is disabled; the render stage then fails explicitly.
type Deps struct {
	Runs      store.RunRepository
	Companies store.CompanyRepository
	Jobs      store.JobRepository
	Snapshots store.SnapshotRepository
	Discovery Discoverer
	Queue     QueueProcessor
	Fetcher   Fetcher
	Renderer  render.Renderer
	Detector  *render.Detector
	Extractor Extractor
	Blobs     blob.Store
	Clock     Clock
	Logger    *zap.Logger
}

// Orchestrator drives pipeline runs through their state machine:
// running -> {completed, failed, cancelled}, terminal states final.
type Orchestrator struct {
	runs       store.RunRepository
	companies  store.CompanyRepository
	jobs       store.JobRepository
	snapshots  store.SnapshotRepository
	discovery  Discoverer
	processor  QueueProcessor
	fetcher    Fetcher
	renderer   render.Renderer
	detector   *render.Detector
	extractor  Extractor
	blobs      blob.Store
	hasher     *sha256.Hasher
	normalizer *normalize.Normalizer
	clock      Clock
	logger     *zap.Logger
}

// New builds an orchestrator from its dependencies.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		runs:       d.Runs,
		companies:  d.Companies,
		jobs:       d.Jobs,
		snapshots:  d.Snapshots,
		discovery:  d.Discovery,
		processor:  d.Queue,
		fetcher:    d.Fetcher,
		renderer:   d.Renderer,
		detector:   d.Detector,
		extractor:  d.Extractor,
		blobs:      d.Blobs,
		hasher:     sha256.New(),
		normalizer: normalize.New(),
		clock:      d.Clock,
		logger:     d.Logger,
	}
}

// errCancelled aborts a stage when the persisted status flips to cancelled.
var errCancelled = errors.New("run cancelled")

// token is the cancellation token threaded through stage checkpoints. It
// re-reads the run's persisted status so a cancel requested through the API
// takes effect at the next checkpoint; in-flight calls are not preempted.
type token struct {
	runs store.RunRepository
	id   uuid.UUID
}

func (t token) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	status, err := t.runs.GetStatus(ctx, t.id)
	if err != nil {
		return fmt.Errorf("poll run status: %w", err)
	}
	if status == domain.RunCancelled {
		return errCancelled
	}
	return nil
}

// Run creates a run for the stage and executes it synchronously, returning
// the terminal run record. Cascading successors execute in the same call.
func (o *Orchestrator) Run(ctx context.Context, stage domain.Stage, params domain.StageParams) (domain.PipelineRun, error) {
	run, err := o.create(ctx, stage, params)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	o.execute(ctx, run, params)
	return o.runs.Get(ctx, run.ID)
}

// Start creates the run, executes it in the background, and returns the
// fresh run record immediately so callers can poll it.
func (o *Orchestrator) Start(ctx context.Context, stage domain.Stage, params domain.StageParams) (domain.PipelineRun, error) {
	run, err := o.create(ctx, stage, params)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	bg := context.WithoutCancel(ctx)
	go o.execute(bg, run, params)
	return run, nil
}

// Cancel flags a running run for cooperative cancellation.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	return o.runs.RequestCancel(ctx, id, o.clock.Now())
}

// RecoverOrphans fails every run left in running by a previous process.
// Called once at startup; runs are never silently resumed.
func (o *Orchestrator) RecoverOrphans(ctx context.Context) (int64, error) {
	n, err := o.runs.SweepOrphans(ctx, "interrupted by restart", o.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.logger.Warn("swept orphaned runs to failed", zap.Int64("count", n))
	}
	return n, nil
}

// HandleInvocation executes one queued stage invocation. Used as the
// subscription handler; malformed stages are logged and dropped.
func (o *Orchestrator) HandleInvocation(ctx context.Context, inv queue.Invocation) {
	stage, ok := domain.ParseStage(string(inv.Stage))
	if !ok {
		o.logger.Warn("dropping invocation for unknown stage", zap.String("stage", string(inv.Stage)))
		return
	}
	run, err := o.Run(ctx, stage, inv.Params)
	if err != nil {
		o.logger.Error("stage invocation failed", zap.String("stage", string(stage)), zap.Error(err))
		return
	}
	o.logger.Info("stage invocation finished",
		zap.String("stage", string(stage)),
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)))
}

func (o *Orchestrator) create(ctx context.Context, stage domain.Stage, params domain.StageParams) (domain.PipelineRun, error) {
	if _, ok := domain.ParseStage(string(stage)); !ok {
		return domain.PipelineRun{}, fmt.Errorf("unknown stage %q", stage)
	}
	run := domain.PipelineRun{
		ID:        uuid.New(),
		Stage:     stage,
		Status:    domain.RunRunning,
		StartedAt: o.clock.Now(),
		Cascade:   params.Cascade,
		Logs:      []domain.RunLogEntry{},
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, run domain.PipelineRun, params domain.StageParams) {
	metrics.RunStarted()
	started := o.clock.Now()
	tok := token{runs: o.runs, id: run.ID}
	o.log(ctx, run.ID, "info", "run started", map[string]any{"stage": string(run.Stage)})

	var counts stageCounts
	var err error
	switch run.Stage {
	case domain.StageDiscover:
		counts, err = o.runDiscover(ctx, run.ID, tok, params)
	case domain.StageProcessQueue:
		counts, err = o.runProcessQueue(ctx, run.ID, tok, params)
	case domain.StageCrawl:
		counts, err = o.runCrawl(ctx, run.ID, tok, params)
	case domain.StageRender:
		counts, err = o.runRender(ctx, run.ID, tok, params)
	case domain.StageExtract:
		counts, err = o.runExtract(ctx, run.ID, tok, params)
	case domain.StageNormalize:
		counts, err = o.runNormalize(ctx, run.ID, tok, params)
	default:
		err = fmt.Errorf("unknown stage %q", run.Stage)
	}

	status := domain.RunCompleted
	errMsg := ""
	switch {
	case errors.Is(err, errCancelled):
		status = domain.RunCancelled
	case err != nil:
		status = domain.RunFailed
		errMsg = err.Error()
		o.log(ctx, run.ID, "error", "run failed", map[string]any{"error": errMsg})
	default:
		o.log(ctx, run.ID, "info", "run completed", map[string]any{
			"processed": counts.processed, "failed": counts.failed,
		})
	}

	now := o.clock.Now()
	landed, finErr := o.runs.Finish(ctx, run.ID, status, errMsg, now)
	if finErr != nil {
		o.logger.Error("finish run", zap.String("run_id", run.ID.String()), zap.Error(finErr))
		return
	}
	if !landed {
		// Already terminal, e.g. a cancel landed between our last
		// checkpoint and here. The persisted status wins.
		status, _ = o.runs.GetStatus(ctx, run.ID)
	}
	metrics.RunFinished(string(run.Stage), string(status), now.Sub(started))

	if status == domain.RunCompleted && run.Cascade {
		o.cascade(ctx, run, params)
	}
}

func (o *Orchestrator) cascade(ctx context.Context, run domain.PipelineRun, params domain.StageParams) {
	next := domain.NextStage(run.Stage)
	if next == "" {
		return
	}
	o.logger.Info("cascading to next stage",
		zap.String("from", string(run.Stage)), zap.String("to", string(next)))
	// Per-stage parameters do not carry across; only the cascade flag and
	// the limit do.
	nextParams := domain.StageParams{Limit: params.Limit, Cascade: true}
	if _, err := o.Run(ctx, next, nextParams); err != nil {
		o.logger.Error("cascade start failed", zap.String("stage", string(next)), zap.Error(err))
	}
}

// log appends one entry to the run's persisted log. Append failures are
// reported to the process log only; they never fail the stage.
func (o *Orchestrator) log(ctx context.Context, id uuid.UUID, level, msg string, data map[string]any) {
	entry := domain.RunLogEntry{TS: o.clock.Now(), Level: level, Msg: msg, Data: data}
	if err := o.runs.AppendLog(ctx, id, entry); err != nil {
		o.logger.Warn("append run log", zap.String("run_id", id.String()), zap.Error(err))
	}
}

func (o *Orchestrator) progress(ctx context.Context, id uuid.UUID, step string, c stageCounts) {
	if err := o.runs.UpdateProgress(ctx, id, step, c.processed, c.failed); err != nil {
		o.logger.Warn("update run progress", zap.String("run_id", id.String()), zap.Error(err))
	}
}

type stageCounts struct {
	processed int
	failed    int
}
