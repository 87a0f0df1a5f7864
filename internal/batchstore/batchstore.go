// Package batchstore keeps tagged batches in memory under per-upload handles.
package batchstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"clausewise/internal/domain"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = time.Hour

// Store is an expiring in-memory domain.BatchStore.
type Store struct {
	cache *cache.Cache
	now   func() time.Time
}

func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		cache: cache.New(ttl, ttl/6),
		now:   time.Now,
	}
}

// Save assigns a fresh id and creation time when the batch has none and stores it.
func (s *Store) Save(batch domain.TaggedBatch) (domain.TaggedBatch, error) {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = s.now().UTC()
	}
	s.cache.Set(batch.ID, batch, cache.DefaultExpiration)
	return batch, nil
}

func (s *Store) Get(id string) (domain.TaggedBatch, error) {
	if x, found := s.cache.Get(id); found {
		return x.(domain.TaggedBatch), nil
	}
	return domain.TaggedBatch{}, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, id)
}

func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len reports how many unexpired batches are held.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
