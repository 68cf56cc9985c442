package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/metrics"
	"github.com/openhire/jobradar/internal/store"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Orchestrator fans out over every registered source, deduplicates the
// combined results, and enqueues the survivors for validation.
type Orchestrator struct {
	sources   []Source
	companies store.CompanyRepository
	queue     store.DiscoveryRepository
	clock     Clock
	logger    *zap.Logger
}

// NewOrchestrator builds the orchestrator over the given sources.
func NewOrchestrator(sources []Source, companies store.CompanyRepository, queue store.DiscoveryRepository, clk Clock, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{sources: sources, companies: companies, queue: queue, clock: clk, logger: logger}
}

// sourceResult carries one source's output back to the collection loop.
type sourceResult struct {
	name       string
	candidates []domain.DiscoveredCompany
	err        error
}

// Run executes one discovery pass. only filters sources by name; empty
// means all. A failing source is recorded in the run stats and skipped,
// never fatal.
func (o *Orchestrator) Run(ctx context.Context, only []string) (domain.DiscoveryRun, error) {
	run := domain.DiscoveryRun{ID: uuid.New(), StartedAt: o.clock.Now()}

	selected := o.selectSources(only)
	if len(selected) == 0 {
		return run, fmt.Errorf("no discovery sources selected")
	}

	results := make([]sourceResult, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range selected {
		g.Go(func() error {
			candidates, err := src.Discover(gctx)
			results[i] = sourceResult{name: src.Name(), candidates: candidates, err: err}
			return nil
		})
	}
	_ = g.Wait()

	deduper, err := NewDeduper(ctx, o.companies)
	if err != nil {
		return run, err
	}

	for _, res := range results {
		stats := domain.SourceStats{Source: res.name, Discovered: len(res.candidates)}
		if res.err != nil {
			stats.Errored = 1
			o.logger.Warn("discovery source failed", zap.String("source", res.name), zap.Error(res.err))
		}
		for _, c := range res.candidates {
			class, dom := deduper.Classify(c.Domain)
			switch class {
			case ClassNew:
				metrics.ObserveDiscovered(res.name, "new")
				entry := domain.DiscoveryQueueEntry{
					Name:       c.Name,
					Domain:     dom,
					Source:     c.Source,
					Confidence: c.Confidence,
					QueuedAt:   o.clock.Now(),
				}
				if err := o.queue.Enqueue(ctx, entry); err != nil {
					return run, fmt.Errorf("enqueue candidate %s: %w", dom, err)
				}
			case ClassDuplicateInRun:
				metrics.ObserveDiscovered(res.name, "duplicate_in_run")
				stats.Deduped++
			case ClassDuplicatePersisted:
				metrics.ObserveDiscovered(res.name, "duplicate_persisted")
				stats.Deduped++
			}
		}
		run.Stats = append(run.Stats, stats)
	}

	done := o.clock.Now()
	run.CompletedAt = &done
	if err := o.queue.RecordRun(ctx, run); err != nil {
		return run, fmt.Errorf("record discovery run: %w", err)
	}
	o.logger.Info("discovery run finished",
		zap.String("run_id", run.ID.String()),
		zap.Int("sources", len(selected)))
	return run, nil
}

func (o *Orchestrator) selectSources(only []string) []Source {
	if len(only) == 0 {
		return o.sources
	}
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}
	var selected []Source
	for _, src := range o.sources {
		if wanted[src.Name()] {
			selected = append(selected, src)
		}
	}
	return selected
}
