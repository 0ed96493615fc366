package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icpscout/internal/config"
	"icpscout/internal/domain"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(&config.HistoryConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "history", "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.HistoryConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "again.db")
	for i := 0; i < 2; i++ {
		db, err := Open(&config.HistoryConfig{Driver: "sqlite", DSN: dsn})
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}
}

func TestRunRepo_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	run := &domain.RunRecord{
		ID:           "run-1",
		StartedAt:    started,
		ResearchMode: "training_data",
		ScoringMode:  "holistic",
		Model:        "claude-sonnet-4-20250514",
		Documents:    2,
		Status:       "running",
	}
	require.NoError(t, repo.StartRun(ctx, run))

	finished := started.Add(3 * time.Minute)
	run.FinishedAt = &finished
	run.Candidates, run.Identities, run.Researched, run.Failed, run.HighFit = 7, 5, 4, 1, 2
	run.Status = "completed"
	require.NoError(t, repo.FinishRun(ctx, run))

	require.NoError(t, repo.RecordEvents(ctx, []domain.StoreEvent{
		{RunID: "run-1", Seq: 1, Kind: "resolve", Key: "acme", Field: "team_size", Stage: "research", CreatedAt: finished},
		{RunID: "run-1", Seq: 2, Kind: "research", Key: "acme", Stage: "research", Detail: "researched", CreatedAt: finished},
	}))
	require.NoError(t, repo.RecordEvents(ctx, nil))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM store_events WHERE run_id = ?", "run-1"))
	assert.Equal(t, 2, count)

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 5, got.Identities)
	assert.Equal(t, 2, got.HighFit)
	assert.True(t, started.Equal(got.StartedAt))
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
}

func TestRunRepo_FinishUnknownRun(t *testing.T) {
	repo := NewRunRepo(openTestDB(t))
	err := repo.FinishRun(context.Background(), &domain.RunRecord{ID: "missing", Status: "completed"})
	assert.Error(t, err)
}

func TestRunRepo_DuplicateEventSeq(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()
	require.NoError(t, repo.StartRun(ctx, &domain.RunRecord{ID: "run-2", StartedAt: time.Now().UTC(), Status: "running"}))

	ev := domain.StoreEvent{RunID: "run-2", Seq: 1, Kind: "enrich", Key: "globex", CreatedAt: time.Now().UTC()}
	assert.Error(t, repo.RecordEvents(ctx, []domain.StoreEvent{ev, ev}))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM store_events"))
	assert.Equal(t, 0, count, "failed batch is rolled back")
}

func TestRunRepo_ListOrder(t *testing.T) {
	repo := NewRunRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.StartRun(ctx, &domain.RunRecord{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour), Status: "running"}))
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}
