package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/config"
	"github.com/openhire/jobradar/internal/domain"
)

type fakePipeline struct {
	mu      sync.Mutex
	started []domain.Stage
	params  []domain.StageParams
}

func (f *fakePipeline) Start(_ context.Context, stage domain.Stage, params domain.StageParams) (domain.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, stage)
	f.params = append(f.params, params)
	return domain.PipelineRun{ID: uuid.New(), Stage: stage, Status: domain.RunRunning}, nil
}

func TestNewRejectsUnknownStage(t *testing.T) {
	t.Parallel()

	_, err := New(map[string]config.Schedule{
		"bad": {Cron: "@hourly", Stage: "defragment"},
	}, &fakePipeline{}, zap.NewNop())
	require.Error(t, err)
}

func TestNewRejectsInvalidCronSpec(t *testing.T) {
	t.Parallel()

	_, err := New(map[string]config.Schedule{
		"bad": {Cron: "not a cron spec", Stage: "discover"},
	}, &fakePipeline{}, zap.NewNop())
	require.Error(t, err)
}

func TestTriggerStartsStageWithParams(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	s, err := New(map[string]config.Schedule{
		"nightly": {Cron: "@daily", Stage: "discover", Cascade: true, Limit: 25},
	}, p, zap.NewNop())
	require.NoError(t, err)

	// Fire the registered trigger directly rather than waiting on cron.
	s.trigger("nightly", domain.StageDiscover, domain.StageParams{Cascade: true, Limit: 25})()

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.started, 1)
	assert.Equal(t, domain.StageDiscover, p.started[0])
	assert.True(t, p.params[0].Cascade)
	assert.Equal(t, 25, p.params[0].Limit)
}

func TestStopReturnsPromptly(t *testing.T) {
	t.Parallel()

	s, err := New(map[string]config.Schedule{
		"hourly": {Cron: "@hourly", Stage: "crawl"},
	}, &fakePipeline{}, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
