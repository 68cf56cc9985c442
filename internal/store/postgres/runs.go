package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/store"
)

// RunStore implements store.RunRepository on Postgres. Terminal statuses
// are enforced in SQL so concurrent writers cannot resurrect a run.
type RunStore struct {
	pool Pool
}

// NewRunStore constructs a store over an existing pool.
func NewRunStore(pool Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runColumns = `id, stage, status, started_at, completed_at, current_step, processed, failed, error, cascade_next, logs`

// Create inserts a new running run.
func (s *RunStore) Create(ctx context.Context, run domain.PipelineRun) error {
	logs, err := json.Marshal(run.Logs)
	if err != nil {
		return fmt.Errorf("marshal run logs: %w", err)
	}
	query := `
		INSERT INTO pipeline_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err = s.pool.Exec(ctx, query, run.ID, run.Stage, run.Status, run.StartedAt,
		run.CompletedAt, run.CurrentStep, run.Processed, run.Failed, run.Error,
		run.Cascade, logs)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Get loads one run.
func (s *RunStore) Get(ctx context.Context, id uuid.UUID) (domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = $1;`
	out, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PipelineRun{}, store.ErrNotFound
	}
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("get run: %w", err)
	}
	return out, nil
}

// GetStatus loads only the status column; the cancellation checkpoint polls
// this between steps.
func (s *RunStore) GetStatus(ctx context.Context, id uuid.UUID) (domain.RunStatus, error) {
	var status domain.RunStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM pipeline_runs WHERE id = $1;`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get run status: %w", err)
	}
	return status, nil
}

// List returns runs newest first, optionally filtered by stage.
func (s *RunStore) List(ctx context.Context, stage *domain.Stage, limit, offset int) ([]domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM pipeline_runs
		WHERE ($1::text IS NULL OR stage = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`
	var stageArg any
	if stage != nil {
		stageArg = string(*stage)
	}
	rows, err := s.pool.Query(ctx, query, stageArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// UpdateProgress records counters on a live run. Terminal runs ignore it.
func (s *RunStore) UpdateProgress(ctx context.Context, id uuid.UUID, step string, processed, failed int) error {
	query := `UPDATE pipeline_runs
		SET current_step = $2, processed = $3, failed = $4
		WHERE id = $1 AND status = 'running';`
	_, err := s.pool.Exec(ctx, query, id, step, processed, failed)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// AppendLog appends one structured entry to the run's jsonb log array.
func (s *RunStore) AppendLog(ctx context.Context, id uuid.UUID, entry domain.RunLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	query := `UPDATE pipeline_runs SET logs = logs || $2::jsonb WHERE id = $1;`
	_, err = s.pool.Exec(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

// Finish moves a running run to a terminal status. Reports whether the
// write landed; false means the run was already terminal.
func (s *RunStore) Finish(ctx context.Context, id uuid.UUID, status domain.RunStatus, errMsg string, at time.Time) (bool, error) {
	query := `UPDATE pipeline_runs
		SET status = $2, error = $3, completed_at = $4
		WHERE id = $1 AND status = 'running';`
	tag, err := s.pool.Exec(ctx, query, id, status, errMsg, at)
	if err != nil {
		return false, fmt.Errorf("finish run: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RequestCancel moves a running run to cancelled. Cancelling an
// already-terminal run is a no-op; an unknown run is ErrNotFound.
func (s *RunStore) RequestCancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE pipeline_runs
		SET status = 'cancelled', completed_at = $2
		WHERE id = $1 AND status = 'running';`
	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already-terminal.
		if _, err := s.GetStatus(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// SweepOrphans fails every run still marked running. Called once at
// startup to account for a crashed predecessor.
func (s *RunStore) SweepOrphans(ctx context.Context, reason string, at time.Time) (int64, error) {
	query := `UPDATE pipeline_runs
		SET status = 'failed', error = $1, completed_at = $2
		WHERE status = 'running';`
	tag, err := s.pool.Exec(ctx, query, reason, at)
	if err != nil {
		return 0, fmt.Errorf("sweep orphan runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (domain.PipelineRun, error) {
	var run domain.PipelineRun
	var logs []byte
	err := row.Scan(&run.ID, &run.Stage, &run.Status, &run.StartedAt,
		&run.CompletedAt, &run.CurrentStep, &run.Processed, &run.Failed,
		&run.Error, &run.Cascade, &logs)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	if len(logs) > 0 {
		if err := json.Unmarshal(logs, &run.Logs); err != nil {
			return domain.PipelineRun{}, fmt.Errorf("decode run logs: %w", err)
		}
	}
	return run, nil
}
