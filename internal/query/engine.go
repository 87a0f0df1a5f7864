// Package query answers questions over a session's retrieval index.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"clausewise/internal/domain"
	"clausewise/internal/index"
	"clausewise/internal/logger"
	"clausewise/internal/metrics"
)

const (
	// DefaultTopK is the number of chunks returned when k <= 0.
	DefaultTopK = 3

	logModule = "query"
)

const answerPrompt = `You are a legal expert assistant.
Use the retrieved context to answer the user query. Be concise, but legally accurate.

Context:
%s

Question:
%s

Answer in simple legal language:`

// Engine embeds questions and searches session indexes built by index.Builder.
type Engine struct {
	embedder  domain.Embedder
	store     domain.SessionStore
	generator domain.Generator
	locks     *index.Locks
	topK      int
	log       logger.Logger
	metrics   *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator enables Answer.
func WithGenerator(g domain.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithLocks shares the session locks with the index builder.
func WithLocks(l *index.Locks) Option {
	return func(e *Engine) { e.locks = l }
}

func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(embedder domain.Embedder, store domain.SessionStore, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		store:    store,
		locks:    index.NewLocks(),
		topK:     DefaultTopK,
		log:      logger.NewNop(),
		metrics:  metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns the k chunks of the session most similar to question, best first.
// An empty sessionID means domain.DefaultSessionID; k <= 0 means the configured default.
func (e *Engine) Query(ctx context.Context, question, sessionID string, k int) (chunks []domain.RetrievalChunk, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveQuery("search", start, err) }()
	return e.search(ctx, question, sessionID, k)
}

// Answer retrieves context for question and asks the generator to answer from it.
// Generation failures are returned as *domain.GenerationError.
func (e *Engine) Answer(ctx context.Context, question, sessionID string, k int) (answer domain.Answer, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveQuery("answer", start, err) }()

	chunks, err := e.search(ctx, question, sessionID, k)
	if err != nil {
		return domain.Answer{}, err
	}
	if e.generator == nil {
		return domain.Answer{}, &domain.GenerationError{Task: "answer", Err: domain.ErrNoGenerator}
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	prompt := fmt.Sprintf(answerPrompt, strings.Join(parts, "\n\n"), strings.TrimSpace(question))
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.Answer{}, &domain.GenerationError{Task: "answer", Err: err}
	}
	return domain.Answer{Text: strings.TrimSpace(text), Sources: chunks}, nil
}

func (e *Engine) search(ctx context.Context, question, sessionID string, k int) ([]domain.RetrievalChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	session, defaulted, err := domain.ResolveSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if defaulted {
		e.log.Warn(logModule, "no session id given, using default session", map[string]interface{}{
			"session": session,
		})
	}
	if k <= 0 {
		k = e.topK
	}

	unlock := e.locks.RLock(session)
	defer unlock()

	manifest, ok, err := e.store.Manifest(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("read manifest of session %q: %w", session, err)
	}
	if !ok {
		return nil, &domain.UninitializedSessionError{SessionID: session}
	}
	if manifest.Embedder != e.embedder.Name() {
		return nil, fmt.Errorf("%w: index built with %q, query uses %q",
			domain.ErrEmbedderMismatch, manifest.Embedder, e.embedder.Name())
	}

	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if manifest.Dimension > 0 && len(vec) != manifest.Dimension {
		return nil, fmt.Errorf("%w: index dimension %d, query dimension %d",
			domain.ErrEmbedderMismatch, manifest.Dimension, len(vec))
	}
	if isZero(vec) {
		// nothing in the question survived tokenization; no direction to compare against
		return nil, nil
	}

	chunks, err := e.store.Search(ctx, session, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search session %q: %w", session, err)
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > k {
		chunks = chunks[:k]
	}

	e.log.Debug(logModule, "query served", map[string]interface{}{
		"session": session,
		"k":       k,
		"results": len(chunks),
	})
	return chunks, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
