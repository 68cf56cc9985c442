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

// SnapshotStore implements store.SnapshotRepository on Postgres.
type SnapshotStore struct {
	pool Pool
}

// NewSnapshotStore constructs a store over an existing pool.
func NewSnapshotStore(pool Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotColumns = `id, company_id, url, content_hash, blob_uri, status_code, rendered, fetched_at`

// Insert stores a new snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.CrawlSnapshot) error {
	query := `
		INSERT INTO snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, query, snap.ID, snap.CompanyID, snap.URL,
		snap.ContentHash, snap.BlobURI, snap.StatusCode, snap.Rendered, snap.FetchedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest loads the newest snapshot for a company.
func (s *SnapshotStore) Latest(ctx context.Context, companyID uuid.UUID) (domain.CrawlSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots
		WHERE company_id = $1 ORDER BY fetched_at DESC LIMIT 1;`
	out, err := scanSnapshot(s.pool.QueryRow(ctx, query, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CrawlSnapshot{}, store.ErrNotFound
	}
	if err != nil {
		return domain.CrawlSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return out, nil
}

// LatestUnrendered lists each company's newest snapshot still awaiting a
// render pass.
func (s *SnapshotStore) LatestUnrendered(ctx context.Context, limit int) ([]domain.CrawlSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT DISTINCT ON (company_id) ` + snapshotColumns + ` FROM snapshots
		WHERE NOT rendered
		ORDER BY company_id, fetched_at DESC
		LIMIT $1;`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unrendered snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.CrawlSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// MarkRendered records the rendered capture. The rendered guard makes the
// transition one-way.
func (s *SnapshotStore) MarkRendered(ctx context.Context, id uuid.UUID, blobURI, contentHash string) error {
	query := `UPDATE snapshots SET rendered = true, blob_uri = $2, content_hash = $3
		WHERE id = $1 AND NOT rendered;`
	tag, err := s.pool.Exec(ctx, query, id, blobURI, contentHash)
	if err != nil {
		return fmt.Errorf("mark snapshot rendered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanSnapshot(row pgx.Row) (domain.CrawlSnapshot, error) {
	var snap domain.CrawlSnapshot
	err := row.Scan(&snap.ID, &snap.CompanyID, &snap.URL, &snap.ContentHash,
		&snap.BlobURI, &snap.StatusCode, &snap.Rendered, &snap.FetchedAt)
	return snap, err
}
