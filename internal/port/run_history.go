package port

import (
	"context"

	"icpscout/internal/domain"
)

// RunRecorder persists pipeline run summaries and the context store's event log.
type RunRecorder interface {
	StartRun(ctx context.Context, run *domain.RunRecord) error
	FinishRun(ctx context.Context, run *domain.RunRecord) error
	RecordEvents(ctx context.Context, events []domain.StoreEvent) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
