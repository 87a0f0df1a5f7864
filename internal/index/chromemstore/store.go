// Package chromemstore persists session indexes on disk with chromem-go, one database per
// session under <base>/<session>.
package chromemstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"clausewise/internal/domain"
)

const (
	collectionName = "clauses"
	manifestFile   = "manifest.json"
	dbDir          = "db"
)

var errNoEmbedding = errors.New("documents must carry precomputed embeddings")

// rejectEmbedding stops chromem from calling a remote embedding API for documents or
// queries without vectors.
func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Store keeps each session in its own directory:
//
//	<base>/<session>/manifest.json
//	<base>/<session>/db/...
//
// Replace writes a complete staging directory and renames it into place, so a failed build
// leaves the previous index intact. Callers serialize Replace, Drop and Search per session.
type Store struct {
	base string

	mu     sync.Mutex
	opened map[string]*chromem.Collection
}

func NewStore(base string) (*Store, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create index base dir: %w", err)
	}
	return &Store{base: base, opened: make(map[string]*chromem.Collection)}, nil
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.base, sessionID)
}

func (s *Store) Replace(ctx context.Context, sessionID string, manifest domain.IndexManifest, chunks []domain.RetrievalChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}

	staging := filepath.Join(s.base, ".staging-"+sessionID+"-"+uuid.NewString())
	defer os.RemoveAll(staging)

	if err := s.writeSession(ctx, staging, manifest, chunks, vectors); err != nil {
		return err
	}

	target := s.sessionDir(sessionID)
	var trash string
	if _, err := os.Stat(target); err == nil {
		trash = filepath.Join(s.base, ".trash-"+sessionID+"-"+uuid.NewString())
		if err := os.Rename(target, trash); err != nil {
			return fmt.Errorf("move old index aside: %w", err)
		}
	}
	if err := os.Rename(staging, target); err != nil {
		if trash != "" {
			_ = os.Rename(trash, target)
		}
		return fmt.Errorf("swap in new index: %w", err)
	}
	if trash != "" {
		_ = os.RemoveAll(trash)
	}

	s.mu.Lock()
	delete(s.opened, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *Store) writeSession(ctx context.Context, dir string, manifest domain.IndexManifest, chunks []domain.RetrievalChunk, vectors [][]float32) error {
	db, err := chromem.NewPersistentDB(filepath.Join(dir, dbDir), false)
	if err != nil {
		return fmt.Errorf("open staging db: %w", err)
	}
	col, err := db.GetOrCreateCollection(collectionName, map[string]string{"hnsw:space": "cosine"}, rejectEmbedding)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			cats, err := json.Marshal(c.Categories)
			if err != nil {
				return err
			}
			docs[i] = chromem.Document{
				ID:        c.ID,
				Content:   c.Content,
				Embedding: vectors[i],
				Metadata: map[string]string{
					"categories":   string(cats),
					"clause_index": strconv.Itoa(c.ClauseIndex),
				},
			}
		}
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("add documents: %w", err)
		}
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

func (s *Store) Manifest(_ context.Context, sessionID string) (domain.IndexManifest, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(sessionID), manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return domain.IndexManifest{}, false, nil
	}
	if err != nil {
		return domain.IndexManifest{}, false, err
	}
	var m domain.IndexManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.IndexManifest{}, false, fmt.Errorf("decode manifest: %w", err)
	}
	return m, true, nil
}

func (s *Store) collection(sessionID string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.opened[sessionID]; ok {
		return col, nil
	}
	dir := s.sessionDir(sessionID)
	if _, err := os.Stat(filepath.Join(dir, manifestFile)); err != nil {
		return nil, &domain.UninitializedSessionError{SessionID: sessionID}
	}
	db, err := chromem.NewPersistentDB(filepath.Join(dir, dbDir), false)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	col := db.GetCollection(collectionName, rejectEmbedding)
	if col == nil {
		return nil, fmt.Errorf("session %q: collection %q missing", sessionID, collectionName)
	}
	s.opened[sessionID] = col
	return col, nil
}

func (s *Store) Search(ctx context.Context, sessionID string, vector []float32, topK int) ([]domain.RetrievalChunk, error) {
	col, err := s.collection(sessionID)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 3
	}
	if n := col.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	res, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query session %q: %w", sessionID, err)
	}
	out := make([]domain.RetrievalChunk, 0, len(res))
	for _, r := range res {
		chunk := domain.RetrievalChunk{ID: r.ID, Content: r.Content, Score: r.Similarity}
		if v, ok := r.Metadata["categories"]; ok {
			if err := json.Unmarshal([]byte(v), &chunk.Categories); err != nil {
				return nil, fmt.Errorf("decode categories of %s: %w", r.ID, err)
			}
		}
		if v, ok := r.Metadata["clause_index"]; ok {
			chunk.ClauseIndex, _ = strconv.Atoi(v)
		}
		out = append(out, chunk)
	}
	return out, nil
}

func (s *Store) Drop(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.opened, sessionID)
	s.mu.Unlock()
	return os.RemoveAll(s.sessionDir(sessionID))
}
