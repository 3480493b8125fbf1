package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vision-inspector/internal/domain/entity"
)

func setupPostgres(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))
	// миграции повторяются без ошибок
	require.NoError(t, store.Migrate(ctx))
	return NewRepository(store)
}

func TestPostgres_Programs(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	id := "pg-" + uuid.NewString()[:8]

	require.NoError(t, repo.SaveProgram(ctx, program(id)))
	got, err := repo.GetProgram(ctx, id)
	require.NoError(t, err)
	require.Equal(t, program(id), got)

	updated := program(id)
	updated.Name = "renamed"
	require.NoError(t, repo.SaveProgram(ctx, updated))
	got, err = repo.GetProgram(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Name)

	require.NoError(t, repo.DeleteProgram(ctx, id))
	_, err = repo.GetProgram(ctx, id)
	require.ErrorIs(t, err, entity.ErrNotFound)
	require.ErrorIs(t, repo.DeleteProgram(ctx, id), entity.ErrNotFound)
}

func TestPostgres_ResultsAndStatistics(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	programID := "pg-" + uuid.NewString()[:8]
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 1; i <= 3; i++ {
		res := &entity.InspectionResult{
			ID:         uuid.NewString(),
			ProgramID:  programID,
			Sequence:   uint64(i),
			Status:     entity.StatusOK,
			Confidence: 90,
			Duration:   12 * time.Millisecond,
			Tools:      []entity.ToolResult{{ToolID: "cap", Kind: entity.ToolArea, MatchingRate: 50, Confidence: 90, Status: entity.StatusOK}},
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}
		if i == 3 {
			res.Offset = &entity.Offset{DX: 3, DY: -2}
		}
		require.NoError(t, repo.SaveResult(ctx, res))
	}

	list, err := repo.ListResults(ctx, programID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, uint64(3), list[0].Sequence)
	require.Equal(t, &entity.Offset{DX: 3, DY: -2}, list[0].Offset)
	require.Nil(t, list[1].Offset)
	require.Len(t, list[0].Tools, 1)

	stats := entity.Statistics{ProgramID: programID, Total: 3, OK: 3, PassRate: 100, StartedAt: base}
	require.NoError(t, repo.SaveStatistics(ctx, stats))
	stats.Total = 4
	require.NoError(t, repo.SaveStatistics(ctx, stats))
}
