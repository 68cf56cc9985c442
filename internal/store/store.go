// Package store declares the persistence interfaces shared by the
// discovery, crawl, extraction, and pipeline subsystems.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openhire/jobradar/internal/domain"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CompanyFilter narrows ListCompanies.
type CompanyFilter struct {
	ATSType    *domain.ATSType
	ActiveOnly bool
	Limit      int
	Offset     int
}

// CompanyRepository persists employer records. Companies are soft-deleted
// only; Deactivate clears Active instead of removing the row.
type CompanyRepository interface {
	// Upsert inserts the company or, on a domain conflict, refreshes the
	// mutable fields and returns the surviving row.
	Upsert(ctx context.Context, c domain.Company) (domain.Company, error)
	// Get loads one company or returns ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (domain.Company, error)
	// GetByDomain loads by normalized domain or returns ErrNotFound.
	GetByDomain(ctx context.Context, dom string) (domain.Company, error)
	// List returns companies matching the filter, newest first.
	List(ctx context.Context, f CompanyFilter) ([]domain.Company, error)
	// KnownDomains returns the normalized domains of every persisted
	// company, for discovery dedup.
	KnownDomains(ctx context.Context) (map[string]bool, error)
	// Deactivate clears Active on one company.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	CompanyID  *uuid.UUID
	RoleFamily string
	Seniority  string
	Remote     *bool
	ActiveOnly bool
	Limit      int
	Offset     int
}

// JobRepository persists canonical postings keyed by fingerprint.
type JobRepository interface {
	// Upsert inserts the job or, on a fingerprint conflict, updates the
	// mutable fields and bumps last_seen while preserving first_seen.
	Upsert(ctx context.Context, j domain.Job) (domain.Job, error)
	// Get loads one job or returns ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (domain.Job, error)
	// List returns jobs matching the filter, freshest first.
	List(ctx context.Context, f JobFilter) ([]domain.Job, error)
	// DeactivateMissing clears Active on the company's jobs whose
	// fingerprints are absent from seen, returning the count.
	DeactivateMissing(ctx context.Context, companyID uuid.UUID, seen []string) (int64, error)
}

// SnapshotRepository persists careers-page captures.
type SnapshotRepository interface {
	// Insert stores a new snapshot.
	Insert(ctx context.Context, s domain.CrawlSnapshot) error
	// Latest loads the most recent snapshot for a company or ErrNotFound.
	Latest(ctx context.Context, companyID uuid.UUID) (domain.CrawlSnapshot, error)
	// LatestUnrendered lists companies' newest snapshots still awaiting a
	// render pass.
	LatestUnrendered(ctx context.Context, limit int) ([]domain.CrawlSnapshot, error)
	// MarkRendered flips the snapshot's rendered flag and re-points its
	// blob at the rendered capture. Valid once per snapshot.
	MarkRendered(ctx context.Context, id uuid.UUID, blobURI, contentHash string) error
}

// DiscoveryRepository persists the candidate queue and run stats.
type DiscoveryRepository interface {
	// Enqueue appends a deduplicated candidate to the queue.
	Enqueue(ctx context.Context, e domain.DiscoveryQueueEntry) error
	// Dequeue returns up to limit oldest entries without removing them.
	Dequeue(ctx context.Context, limit int) ([]domain.DiscoveryQueueEntry, error)
	// Remove deletes processed entries by ID.
	Remove(ctx context.Context, ids []int64) error
	// RecordRun stores one discovery run with its per-source stats.
	RecordRun(ctx context.Context, run domain.DiscoveryRun) error
}

// RunRepository persists pipeline run lifecycle state. Status writes are
// guarded so a terminal run is never overwritten.
type RunRepository interface {
	// Create inserts a new run in the running state.
	Create(ctx context.Context, run domain.PipelineRun) error
	// Get loads one run or returns ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (domain.PipelineRun, error)
	// GetStatus loads only the run's current status.
	GetStatus(ctx context.Context, id uuid.UUID) (domain.RunStatus, error)
	// List returns runs, newest first, optionally filtered by stage.
	List(ctx context.Context, stage *domain.Stage, limit, offset int) ([]domain.PipelineRun, error)
	// UpdateProgress records the current step and counters on a live run.
	UpdateProgress(ctx context.Context, id uuid.UUID, step string, processed, failed int) error
	// AppendLog appends one structured entry to the run's log.
	AppendLog(ctx context.Context, id uuid.UUID, entry domain.RunLogEntry) error
	// Finish moves a running run to a terminal status. It is a no-op when
	// the run is already terminal and reports whether the write landed.
	Finish(ctx context.Context, id uuid.UUID, status domain.RunStatus, errMsg string, at time.Time) (bool, error)
	// RequestCancel moves a running run to cancelled. Returns ErrNotFound
	// for unknown runs and a nil no-op for already-terminal ones.
	RequestCancel(ctx context.Context, id uuid.UUID, at time.Time) error
	// SweepOrphans fails every run left in running, used once at startup
	// to account for crashes.
	SweepOrphans(ctx context.Context, reason string, at time.Time) (int64, error)
}
