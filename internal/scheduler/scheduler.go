// Package scheduler triggers pipeline stages on config-driven cron specs.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/config"
	"github.com/openhire/jobradar/internal/domain"
)

// Pipeline starts stage runs; satisfied by the pipeline orchestrator.
type Pipeline interface {
	Start(ctx context.Context, stage domain.Stage, params domain.StageParams) (domain.PipelineRun, error)
}

// Scheduler owns one cron runner mapping schedules to stage invocations.
type Scheduler struct {
	cron     *cron.Cron
	pipeline Pipeline
	logger   *zap.Logger
}

// New validates the schedules and registers them. The runner is not started
// until Start is called.
func New(schedules map[string]config.Schedule, pipeline Pipeline, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		pipeline: pipeline,
		logger:   logger,
	}
	for name, sched := range schedules {
		stage, ok := domain.ParseStage(sched.Stage)
		if !ok {
			return nil, fmt.Errorf("schedule %q: unknown stage %q", name, sched.Stage)
		}
		params := domain.StageParams{Cascade: sched.Cascade, Limit: sched.Limit}
		if _, err := s.cron.AddFunc(sched.Cron, s.trigger(name, stage, params)); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", name, err)
		}
		logger.Info("schedule registered",
			zap.String("name", name),
			zap.String("cron", sched.Cron),
			zap.String("stage", string(stage)),
			zap.Bool("cascade", sched.Cascade))
	}
	return s, nil
}

func (s *Scheduler) trigger(name string, stage domain.Stage, params domain.StageParams) func() {
	return func() {
		run, err := s.pipeline.Start(context.Background(), stage, params)
		if err != nil {
			s.logger.Error("scheduled stage start failed",
				zap.String("schedule", name), zap.String("stage", string(stage)), zap.Error(err))
			return
		}
		s.logger.Info("scheduled stage started",
			zap.String("schedule", name),
			zap.String("stage", string(stage)),
			zap.String("run_id", run.ID.String()))
	}
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight triggers to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
