// Package memory is an in-process session store using brute-force cosine similarity.
// Indexes live only as long as the process.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"clausewise/internal/domain"
)

type session struct {
	manifest domain.IndexManifest
	chunks   []domain.RetrievalChunk
	vectors  [][]float32
}

// Store keeps one immutable snapshot per session; Replace swaps the snapshot pointer.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewStore() *Store { return &Store{sessions: make(map[string]*session)} }

func (s *Store) Replace(ctx context.Context, sessionID string, manifest domain.IndexManifest, chunks []domain.RetrievalChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := &session{
		manifest: manifest,
		chunks:   append([]domain.RetrievalChunk(nil), chunks...),
		vectors:  make([][]float32, len(vectors)),
	}
	for i, v := range vectors {
		if len(v) != manifest.Dimension {
			return errors.New("vector dimension mismatch")
		}
		snap.vectors[i] = append([]float32(nil), v...)
	}
	s.mu.Lock()
	s.sessions[sessionID] = snap
	s.mu.Unlock()
	return nil
}

func (s *Store) Manifest(_ context.Context, sessionID string) (domain.IndexManifest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[sessionID]
	if !ok {
		return domain.IndexManifest{}, false, nil
	}
	return snap.manifest, true, nil
}

func (s *Store) Search(ctx context.Context, sessionID string, vector []float32, topK int) ([]domain.RetrievalChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	snap, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.UninitializedSessionError{SessionID: sessionID}
	}
	if topK <= 0 {
		topK = 3
	}

	results := make([]domain.RetrievalChunk, len(snap.chunks))
	for i := range snap.chunks {
		results[i] = snap.chunks[i]
		results[i].Score = cosine(snap.vectors[i], vector)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) Drop(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
