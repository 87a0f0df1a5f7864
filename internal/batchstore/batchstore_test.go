package batchstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/domain"
)

func TestSaveAssignsIDAndGetReturnsBatch(t *testing.T) {
	s := New(time.Minute)
	saved, err := s.Save(domain.TaggedBatch{
		Filename: "msa.pdf",
		Clauses:  []domain.TaggedClause{{Text: "clause one", RiskScore: 10}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := s.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
	assert.Equal(t, 1, s.Len())
}

func TestSaveKeepsExistingID(t *testing.T) {
	s := New(time.Minute)
	saved, err := s.Save(domain.TaggedBatch{ID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", saved.ID)
}

func TestGetMissing(t *testing.T) {
	s := New(0)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
}

func TestBatchesExpire(t *testing.T) {
	s := New(20 * time.Millisecond)
	saved, err := s.Save(domain.TaggedBatch{Filename: "a.txt"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = s.Get(saved.ID)
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
}

func TestDelete(t *testing.T) {
	s := New(time.Minute)
	saved, _ := s.Save(domain.TaggedBatch{})
	s.Delete(saved.ID)
	_, err := s.Get(saved.ID)
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
}
