package chromemstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/domain"
)

func fixture() (domain.IndexManifest, []domain.RetrievalChunk, [][]float32) {
	chunks := []domain.RetrievalChunk{
		{ID: "clause-0-0", Content: "indemnify the buyer", Categories: []string{"indemnity"}, ClauseIndex: 0},
		{ID: "clause-1-0", Content: "governed by new york law", Categories: []string{"governing_law", "other"}, ClauseIndex: 1},
		{ID: "clause-2-0", Content: "payment terms", Categories: []string{"other"}, ClauseIndex: 2},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.6, 0.8, 0},
	}
	return domain.IndexManifest{Embedder: "test", Dimension: 3, Chunks: 3}, chunks, vectors
}

func TestReplaceAndSearch(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewStore(base)
	require.NoError(t, err)

	manifest, chunks, vectors := fixture()
	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks, vectors))

	got, ok, err := s.Manifest(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, manifest, got)

	res, err := s.Search(ctx, "alpha", []float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "clause-1-0", res[0].ID)
	assert.Equal(t, []string{"governing_law", "other"}, res[0].Categories)
	assert.Equal(t, 1, res[0].ClauseIndex)
	assert.Equal(t, "clause-2-0", res[1].ID)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directories must be cleaned up")
	assert.Equal(t, "alpha", entries[0].Name())
}

func TestSearchClampsTopK(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	manifest, chunks, vectors := fixture()
	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks, vectors))

	res, err := s.Search(ctx, "alpha", []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestReplaceOverwritesAndSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewStore(base)
	require.NoError(t, err)

	manifest, chunks, vectors := fixture()
	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks, vectors))
	_, err = s.Search(ctx, "alpha", []float32{1, 0, 0}, 1)
	require.NoError(t, err)

	replacement := []domain.RetrievalChunk{{ID: "clause-0-0", Content: "only chunk", Categories: []string{"other"}}}
	require.NoError(t, s.Replace(ctx, "alpha", domain.IndexManifest{Embedder: "test", Dimension: 3, Chunks: 1},
		replacement, [][]float32{{0, 0, 1}}))

	reopened, err := NewStore(base)
	require.NoError(t, err)
	res, err := reopened.Search(ctx, "alpha", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "only chunk", res[0].Content)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	manifest, chunks, vectors := fixture()
	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks, vectors))

	_, ok, err := s.Manifest(ctx, "beta")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Search(ctx, "beta", []float32{1, 0, 0}, 3)
	var ue *domain.UninitializedSessionError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "beta", ue.SessionID)
}

func TestEmptyIndexAndDrop(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewStore(base)
	require.NoError(t, err)

	require.NoError(t, s.Replace(ctx, "empty", domain.IndexManifest{Embedder: "test", Dimension: 3}, nil, nil))
	res, err := s.Search(ctx, "empty", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, s.Drop(ctx, "empty"))
	_, err = os.Stat(filepath.Join(base, "empty"))
	assert.True(t, os.IsNotExist(err))
	_, ok, err := s.Manifest(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, ok)
}
