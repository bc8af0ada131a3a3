package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribenet/thesis-service/internal/domain"
)

func TestMemory_ThesisLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	thesis := newTestThesis()

	require.NoError(t, store.CreateThesis(ctx, thesis))

	t.Run("duplicate create fails", func(t *testing.T) {
		err := store.CreateThesis(ctx, thesis)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := store.GetThesis(ctx, thesis.ID)
		require.NoError(t, err)
		assert.Equal(t, thesis.Title, got.Title)

		got.Title = "mutated"
		again, err := store.GetThesis(ctx, thesis.ID)
		require.NoError(t, err)
		assert.Equal(t, thesis.Title, again.Title)
	})

	t.Run("status starts at draft and updates", func(t *testing.T) {
		status, err := store.GetStatus(ctx, thesis.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, status)

		require.NoError(t, store.UpdateStatus(ctx, thesis.ID, domain.StatusResearching))
		status, err = store.GetStatus(ctx, thesis.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusResearching, status)
	})

	t.Run("unknown thesis is not found", func(t *testing.T) {
		_, err := store.GetThesis(ctx, uuid.New())
		var notFound *domain.NotFoundError
		assert.True(t, errors.As(err, &notFound))

		err = store.UpdateStatus(ctx, uuid.New(), domain.StatusFailed)
		assert.True(t, errors.As(err, &notFound))
	})
}

func TestMemory_IngestionRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	thesis := newTestThesis()
	require.NoError(t, store.CreateThesis(ctx, thesis))

	records, err := store.ListIngestionRecords(ctx, thesis.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	first := domain.IngestionRecord{DOI: "10.1/a", Title: "First", FileName: "first.pdf"}
	second := domain.IngestionRecord{DOI: "10.1/b", Title: "Second", FileName: "second.pdf"}

	require.NoError(t, store.AppendIngestionRecord(ctx, thesis.ID, first))
	require.NoError(t, store.AppendIngestionRecord(ctx, thesis.ID, second))

	records, err = store.ListIngestionRecords(ctx, thesis.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "10.1/a", records[0].DOI)
	assert.Equal(t, "10.1/b", records[1].DOI)
	assert.False(t, records[0].UploadedAt.IsZero())
}

func TestMemory_ResearchResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	thesis := newTestThesis()
	require.NoError(t, store.CreateThesis(ctx, thesis))

	_, err := store.GetResearchResult(ctx, thesis.ID)
	var notFound *domain.NotFoundError
	assert.True(t, errors.As(err, &notFound))

	result := domain.ResearchResult{TotalFound: 50, UploadedCount: 12}
	require.NoError(t, store.SaveResearchResult(ctx, thesis.ID, result))

	got, err := store.GetResearchResult(ctx, thesis.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.TotalFound)
	assert.Equal(t, 12, got.UploadedCount)

	err = store.SaveResearchResult(ctx, uuid.New(), result)
	assert.True(t, errors.As(err, &notFound))
}

func TestMemory_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	thesis := newTestThesis()
	require.NoError(t, store.CreateThesis(ctx, thesis))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AppendIngestionRecord(ctx, thesis.ID, domain.IngestionRecord{Title: "concurrent"})
		}()
	}
	wg.Wait()

	records, err := store.ListIngestionRecords(ctx, thesis.ID)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}
