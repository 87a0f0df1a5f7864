// Package index builds per-session retrieval indexes from tagged batches.
package index

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"clausewise/internal/domain"
	"clausewise/internal/logger"
	"clausewise/internal/metrics"
)

const logModule = "index"

// Builder chunks tagged clauses, embeds every chunk and replaces the session index.
type Builder struct {
	chunker     domain.Chunker
	embedder    domain.Embedder
	store       domain.SessionStore
	locks       *Locks
	concurrency int
	log         logger.Logger
	metrics     *metrics.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithLocks shares the session locks with a query engine.
func WithLocks(l *Locks) Option {
	return func(b *Builder) { b.locks = l }
}

// WithConcurrency bounds parallel embedding calls.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(b *Builder) { b.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func NewBuilder(chunker domain.Chunker, embedder domain.Embedder, store domain.SessionStore, opts ...Option) *Builder {
	b := &Builder{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		locks:       NewLocks(),
		concurrency: 4,
		log:         logger.NewNop(),
		metrics:     metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build replaces the index of sessionID with chunks of batch. An empty sessionID means
// domain.DefaultSessionID. On failure the previous index, if any, is left untouched.
func (b *Builder) Build(ctx context.Context, batch domain.TaggedBatch, sessionID string) (manifest domain.IndexManifest, err error) {
	session, err := b.resolve(sessionID)
	if err != nil {
		return domain.IndexManifest{}, err
	}

	start := time.Now()
	defer func() { b.metrics.ObserveBuild(start, manifest.Chunks, err) }()

	unlock := b.locks.Lock(session)
	defer unlock()

	chunks := b.chunk(batch)
	vectors, err := b.embed(ctx, chunks)
	if err != nil {
		return domain.IndexManifest{}, &domain.IndexBuildError{SessionID: session, Err: err}
	}

	chunks, vectors = b.dropZeroVectors(session, chunks, vectors)

	manifest = domain.IndexManifest{
		Embedder:  b.embedder.Name(),
		Dimension: b.embedder.Dimension(),
		Chunks:    len(chunks),
	}
	if len(vectors) > 0 {
		manifest.Dimension = len(vectors[0])
	}
	if err := b.store.Replace(ctx, session, manifest, chunks, vectors); err != nil {
		return domain.IndexManifest{}, &domain.IndexBuildError{SessionID: session, Err: err}
	}

	b.log.Info(logModule, "session index built", map[string]interface{}{
		"session":     session,
		"batch_id":    batch.ID,
		"clauses":     len(batch.Clauses),
		"chunks":      len(chunks),
		"embedder":    manifest.Embedder,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return manifest, nil
}

// Drop removes the index of sessionID. Dropping a session that was never built is not an error.
func (b *Builder) Drop(ctx context.Context, sessionID string) error {
	session, err := b.resolve(sessionID)
	if err != nil {
		return err
	}
	unlock := b.locks.Lock(session)
	defer unlock()
	if err := b.store.Drop(ctx, session); err != nil {
		return fmt.Errorf("drop session %q: %w", session, err)
	}
	b.log.Info(logModule, "session index dropped", map[string]interface{}{"session": session})
	return nil
}

func (b *Builder) resolve(sessionID string) (string, error) {
	session, defaulted, err := domain.ResolveSessionID(sessionID)
	if err != nil {
		return "", err
	}
	if defaulted {
		b.log.Warn(logModule, "no session id given, using default session", map[string]interface{}{
			"session": session,
		})
	}
	return session, nil
}

func (b *Builder) chunk(batch domain.TaggedBatch) []domain.RetrievalChunk {
	var chunks []domain.RetrievalChunk
	for i, clause := range batch.Clauses {
		for j, piece := range b.chunker.Split(clause.Text) {
			chunks = append(chunks, domain.RetrievalChunk{
				ID:          fmt.Sprintf("clause-%d-%d", i, j),
				Content:     piece,
				Categories:  append([]string(nil), clause.Categories...),
				ClauseIndex: i,
			})
		}
	}
	return chunks
}

func (b *Builder) embed(ctx context.Context, chunks []domain.RetrievalChunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range chunks {
		g.Go(func() error {
			v, err := b.embedder.Embed(gctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunks[i].ID, err)
			}
			if len(v) == 0 {
				return fmt.Errorf("embed chunk %s: empty vector", chunks[i].ID)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("embed chunk %s: dimension %d, want %d", chunks[i].ID, len(v), len(vectors[0]))
		}
	}
	return vectors, nil
}

// dropZeroVectors removes chunks whose vector has no direction, such as stopword-only text.
// They cannot be ranked by cosine similarity.
func (b *Builder) dropZeroVectors(session string, chunks []domain.RetrievalChunk, vectors [][]float32) ([]domain.RetrievalChunk, [][]float32) {
	keptChunks := chunks[:0:0]
	keptVectors := vectors[:0:0]
	for i, v := range vectors {
		if isZero(v) {
			b.log.Warn(logModule, "skipping chunk with zero embedding", map[string]interface{}{
				"session":  session,
				"chunk_id": chunks[i].ID,
			})
			continue
		}
		keptChunks = append(keptChunks, chunks[i])
		keptVectors = append(keptVectors, v)
	}
	return keptChunks, keptVectors
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
