// Package memory provides in-memory store implementations for tests and
// single-process runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/store"
)

// RunStore implements store.RunRepository in memory with the same terminal
// guards as the Postgres store.
type RunStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*domain.PipelineRun
}

// NewRunStore builds an empty store.
func NewRunStore() *RunStore {
	return &RunStore{runs: map[uuid.UUID]*domain.PipelineRun{}}
}

// Create implements store.RunRepository.
func (s *RunStore) Create(_ context.Context, run domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := run
	copied.Logs = append([]domain.RunLogEntry(nil), run.Logs...)
	s.runs[run.ID] = &copied
	return nil
}

// Get implements store.RunRepository.
func (s *RunStore) Get(_ context.Context, id uuid.UUID) (domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.PipelineRun{}, store.ErrNotFound
	}
	out := *run
	out.Logs = append([]domain.RunLogEntry(nil), run.Logs...)
	return out, nil
}

// GetStatus implements store.RunRepository.
func (s *RunStore) GetStatus(_ context.Context, id uuid.UUID) (domain.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return "", store.ErrNotFound
	}
	return run.Status, nil
}

// List implements store.RunRepository.
func (s *RunStore) List(_ context.Context, stage *domain.Stage, limit, offset int) ([]domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PipelineRun
	for _, run := range s.runs {
		if stage != nil && run.Stage != *stage {
			continue
		}
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// UpdateProgress implements store.RunRepository.
func (s *RunStore) UpdateProgress(_ context.Context, id uuid.UUID, step string, processed, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != domain.RunRunning {
		return nil
	}
	run.CurrentStep = step
	run.Processed = processed
	run.Failed = failed
	return nil
}

// AppendLog implements store.RunRepository.
func (s *RunStore) AppendLog(_ context.Context, id uuid.UUID, entry domain.RunLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Logs = append(run.Logs, entry)
	return nil
}

// Finish implements store.RunRepository.
func (s *RunStore) Finish(_ context.Context, id uuid.UUID, status domain.RunStatus, errMsg string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != domain.RunRunning {
		return false, nil
	}
	run.Status = status
	run.Error = errMsg
	run.CompletedAt = &at
	return true, nil
}

// RequestCancel implements store.RunRepository.
func (s *RunStore) RequestCancel(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if run.Status != domain.RunRunning {
		return nil
	}
	run.Status = domain.RunCancelled
	run.CompletedAt = &at
	return nil
}

// SweepOrphans implements store.RunRepository.
func (s *RunStore) SweepOrphans(_ context.Context, reason string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, run := range s.runs {
		if run.Status == domain.RunRunning {
			run.Status = domain.RunFailed
			run.Error = reason
			run.CompletedAt = &at
			n++
		}
	}
	return n, nil
}
