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

// CompanyStore implements store.CompanyRepository on Postgres.
type CompanyStore struct {
	pool Pool
}

// NewCompanyStore constructs a store over an existing pool.
func NewCompanyStore(pool Pool) *CompanyStore {
	return &CompanyStore{pool: pool}
}

const companyColumns = `id, name, domain, careers_url, ats_type, location, source, verified, active, created_at, updated_at`

// Upsert inserts the company or refreshes it on a domain conflict.
func (s *CompanyStore) Upsert(ctx context.Context, c domain.Company) (domain.Company, error) {
	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (domain) DO UPDATE
		SET name = EXCLUDED.name,
		    careers_url = EXCLUDED.careers_url,
		    ats_type = EXCLUDED.ats_type,
		    location = EXCLUDED.location,
		    verified = EXCLUDED.verified,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + companyColumns + `;
	`
	row := s.pool.QueryRow(ctx, query,
		c.ID, c.Name, c.Domain, c.CareersURL, c.ATSType, c.Location,
		c.Source, c.Verified, c.Active, c.CreatedAt, c.UpdatedAt)
	out, err := scanCompany(row)
	if err != nil {
		return domain.Company{}, fmt.Errorf("upsert company %s: %w", c.Domain, err)
	}
	return out, nil
}

// Get loads one company by ID.
func (s *CompanyStore) Get(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1;`
	out, err := scanCompany(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("get company: %w", err)
	}
	return out, nil
}

// GetByDomain loads one company by normalized domain.
func (s *CompanyStore) GetByDomain(ctx context.Context, dom string) (domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE domain = $1;`
	out, err := scanCompany(s.pool.QueryRow(ctx, query, dom))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("get company by domain: %w", err)
	}
	return out, nil
}

// List returns companies matching the filter, newest first.
func (s *CompanyStore) List(ctx context.Context, f store.CompanyFilter) ([]domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE ($1::text IS NULL OR ats_type = $1)
		AND (NOT $2 OR active)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4;`
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var atsArg any
	if f.ATSType != nil {
		atsArg = string(*f.ATSType)
	}
	rows, err := s.pool.Query(ctx, query, atsArg, f.ActiveOnly, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// KnownDomains returns every persisted company domain.
func (s *CompanyStore) KnownDomains(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT domain FROM companies;`)
	if err != nil {
		return nil, fmt.Errorf("load domains: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var dom string
		if err := rows.Scan(&dom); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out[dom] = true
	}
	return out, rows.Err()
}

// Deactivate clears the active flag on one company.
func (s *CompanyStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE companies SET active = false, updated_at = now() WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("deactivate company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanCompany(row pgx.Row) (domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.CareersURL, &c.ATSType,
		&c.Location, &c.Source, &c.Verified, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
