package history

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"icpscout/internal/domain"
	"icpscout/internal/port"
)

const runColumns = `id, started_at, finished_at, research_mode, scoring_mode, model,
	documents, candidates, identities, researched, failed, cancelled, high_fit, status, error_message`

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a sqlx-backed RunRecorder.
func NewRunRepo(db *sqlx.DB) port.RunRecorder {
	return &runRepo{db: db}
}

func (r *runRepo) StartRun(ctx context.Context, run *domain.RunRecord) error {
	query := `INSERT INTO runs (` + runColumns + `)
		VALUES (:id, :started_at, :finished_at, :research_mode, :scoring_mode, :model,
			:documents, :candidates, :identities, :researched, :failed, :cancelled, :high_fit, :status, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("runRepo.StartRun: %w", err)
	}
	return nil
}

func (r *runRepo) FinishRun(ctx context.Context, run *domain.RunRecord) error {
	query := `UPDATE runs SET
			finished_at = :finished_at, documents = :documents, candidates = :candidates,
			identities = :identities, researched = :researched, failed = :failed,
			cancelled = :cancelled, high_fit = :high_fit, status = :status, error_message = :error_message
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("runRepo.FinishRun: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("runRepo.FinishRun rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("runRepo.FinishRun: run %s not found", run.ID)
	}
	return nil
}

func (r *runRepo) RecordEvents(ctx context.Context, events []domain.StoreEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runRepo.RecordEvents begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO store_events (run_id, seq, kind, company_key, field, stage, detail, created_at)
		VALUES (:run_id, :seq, :kind, :company_key, :field, :stage, :detail, :created_at)`
	for i := range events {
		if _, err := tx.NamedExecContext(ctx, query, &events[i]); err != nil {
			return fmt.Errorf("runRepo.RecordEvents seq %d: %w", events[i].Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("runRepo.RecordEvents commit: %w", err)
	}
	return nil
}

func (r *runRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []domain.RunRecord
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("runRepo.ListRuns: %w", err)
	}
	return runs, nil
}
