package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/store"
)

// JobStore implements store.JobRepository on Postgres.
type JobStore struct {
	pool Pool
}

// NewJobStore constructs a store over an existing pool.
func NewJobStore(pool Pool) *JobStore {
	return &JobStore{pool: pool}
}

const jobColumns = `id, company_id, fingerprint, title, source_url, location, department,
	employment_type, role_family, seniority, skills, salary_min, salary_max,
	remote, freshness, posted_at, active, first_seen, last_seen`

// Upsert inserts the job or, on a fingerprint conflict, updates the mutable
// fields while keeping first_seen.
func (s *JobStore) Upsert(ctx context.Context, j domain.Job) (domain.Job, error) {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (fingerprint) DO UPDATE
		SET title = EXCLUDED.title,
		    location = EXCLUDED.location,
		    department = EXCLUDED.department,
		    employment_type = EXCLUDED.employment_type,
		    role_family = EXCLUDED.role_family,
		    seniority = EXCLUDED.seniority,
		    skills = EXCLUDED.skills,
		    salary_min = EXCLUDED.salary_min,
		    salary_max = EXCLUDED.salary_max,
		    remote = EXCLUDED.remote,
		    freshness = EXCLUDED.freshness,
		    posted_at = EXCLUDED.posted_at,
		    active = true,
		    last_seen = EXCLUDED.last_seen
		RETURNING ` + jobColumns + `;
	`
	row := s.pool.QueryRow(ctx, query,
		j.ID, j.CompanyID, j.Fingerprint, j.Title, j.SourceURL, j.Location,
		j.Department, j.EmploymentType, j.RoleFamily, j.Seniority, j.Skills,
		j.SalaryMin, j.SalaryMax, j.Remote, j.Freshness, j.PostedAt,
		j.Active, j.FirstSeen, j.LastSeen)
	out, err := scanJob(row)
	if err != nil {
		return domain.Job{}, fmt.Errorf("upsert job %s: %w", j.Fingerprint, err)
	}
	return out, nil
}

// Get loads one job by ID.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	out, err := scanJob(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return out, nil
}

// List returns jobs matching the filter, freshest first.
func (s *JobStore) List(ctx context.Context, f store.JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE ($1::uuid IS NULL OR company_id = $1)
		AND ($2 = '' OR role_family = $2)
		AND ($3 = '' OR seniority = $3)
		AND ($4::boolean IS NULL OR remote = $4)
		AND (NOT $5 OR active)
		ORDER BY freshness DESC, last_seen DESC
		LIMIT $6 OFFSET $7;`
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var companyArg, remoteArg any
	if f.CompanyID != nil {
		companyArg = *f.CompanyID
	}
	if f.Remote != nil {
		remoteArg = *f.Remote
	}
	rows, err := s.pool.Query(ctx, query, companyArg, f.RoleFamily, f.Seniority,
		remoteArg, f.ActiveOnly, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// DeactivateMissing clears active on the company's jobs absent from seen.
func (s *JobStore) DeactivateMissing(ctx context.Context, companyID uuid.UUID, seen []string) (int64, error) {
	query := `UPDATE jobs SET active = false
		WHERE company_id = $1 AND active AND NOT (fingerprint = ANY($2));`
	tag, err := s.pool.Exec(ctx, query, companyID, seen)
	if err != nil {
		return 0, fmt.Errorf("deactivate missing jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.ID, &j.CompanyID, &j.Fingerprint, &j.Title, &j.SourceURL,
		&j.Location, &j.Department, &j.EmploymentType, &j.RoleFamily,
		&j.Seniority, &j.Skills, &j.SalaryMin, &j.SalaryMax, &j.Remote,
		&j.Freshness, &j.PostedAt, &j.Active, &j.FirstSeen, &j.LastSeen)
	return j, err
}
