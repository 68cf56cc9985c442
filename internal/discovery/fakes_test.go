package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/store"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time {
	if f.now.IsZero() {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}
	return f.now
}

type fakeCompanyRepo struct {
	mu       sync.Mutex
	known    map[string]bool
	upserted []domain.Company
}

func (f *fakeCompanyRepo) Upsert(_ context.Context, c domain.Company) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, c)
	return c, nil
}

func (f *fakeCompanyRepo) Get(context.Context, uuid.UUID) (domain.Company, error) {
	return domain.Company{}, store.ErrNotFound
}

func (f *fakeCompanyRepo) GetByDomain(context.Context, string) (domain.Company, error) {
	return domain.Company{}, store.ErrNotFound
}

func (f *fakeCompanyRepo) List(context.Context, store.CompanyFilter) ([]domain.Company, error) {
	return nil, nil
}

func (f *fakeCompanyRepo) KnownDomains(context.Context) (map[string]bool, error) {
	return f.known, nil
}

func (f *fakeCompanyRepo) Deactivate(context.Context, uuid.UUID) error { return nil }

type fakeDiscoveryRepo struct {
	mu      sync.Mutex
	queued  []domain.DiscoveryQueueEntry
	removed []int64
	runs    []domain.DiscoveryRun
	nextID  int64
}

func (f *fakeDiscoveryRepo) Enqueue(_ context.Context, e domain.DiscoveryQueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	f.queued = append(f.queued, e)
	return nil
}

func (f *fakeDiscoveryRepo) Dequeue(_ context.Context, limit int) ([]domain.DiscoveryQueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.queued) {
		limit = len(f.queued)
	}
	return append([]domain.DiscoveryQueueEntry(nil), f.queued[:limit]...), nil
}

func (f *fakeDiscoveryRepo) Remove(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ids...)
	drop := map[int64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.queued[:0]
	for _, e := range f.queued {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	f.queued = kept
	return nil
}

func (f *fakeDiscoveryRepo) RecordRun(_ context.Context, run domain.DiscoveryRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

type staticSource struct {
	name       string
	candidates []domain.DiscoveredCompany
	err        error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Discover(context.Context) ([]domain.DiscoveredCompany, error) {
	return s.candidates, s.err
}
