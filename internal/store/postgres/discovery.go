package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openhire/jobradar/internal/domain"
)

// DiscoveryStore implements store.DiscoveryRepository on Postgres.
type DiscoveryStore struct {
	pool Pool
}

// NewDiscoveryStore constructs a store over an existing pool.
func NewDiscoveryStore(pool Pool) *DiscoveryStore {
	return &DiscoveryStore{pool: pool}
}

// Enqueue appends a candidate. A conflicting domain already in the queue is
// left untouched.
func (s *DiscoveryStore) Enqueue(ctx context.Context, e domain.DiscoveryQueueEntry) error {
	query := `
		INSERT INTO discovery_queue (name, domain, source, confidence, queued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (domain) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, query, e.Name, e.Domain, e.Source, e.Confidence, e.QueuedAt)
	if err != nil {
		return fmt.Errorf("enqueue candidate: %w", err)
	}
	return nil
}

// Dequeue returns up to limit oldest entries without removing them.
func (s *DiscoveryStore) Dequeue(ctx context.Context, limit int) ([]domain.DiscoveryQueueEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, name, domain, source, confidence, queued_at
		FROM discovery_queue ORDER BY queued_at ASC LIMIT $1;`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.DiscoveryQueueEntry
	for rows.Next() {
		var e domain.DiscoveryQueueEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Domain, &e.Source, &e.Confidence, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove deletes processed entries.
func (s *DiscoveryStore) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM discovery_queue WHERE id = ANY($1);`, ids)
	if err != nil {
		return fmt.Errorf("remove queue entries: %w", err)
	}
	return nil
}

// RecordRun stores one discovery run with its stats as jsonb.
func (s *DiscoveryStore) RecordRun(ctx context.Context, run domain.DiscoveryRun) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("marshal run stats: %w", err)
	}
	query := `
		INSERT INTO discovery_runs (id, started_at, completed_at, stats)
		VALUES ($1, $2, $3, $4);
	`
	_, err = s.pool.Exec(ctx, query, run.ID, run.StartedAt, run.CompletedAt, stats)
	if err != nil {
		return fmt.Errorf("record discovery run: %w", err)
	}
	return nil
}
