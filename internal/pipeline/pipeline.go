// Package pipeline turns extracted contract text into an ordered, tagged batch.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"clausewise/internal/domain"
	"clausewise/internal/logger"
	"clausewise/internal/metrics"
	"clausewise/internal/segmenter"
)

const logModule = "pipeline"

// ClauseTagger annotates one clause.
type ClauseTagger interface {
	Tag(ctx context.Context, clause string) (domain.TaggedClause, error)
}

// Pipeline segments a document and tags its leading clauses with a bounded worker pool.
type Pipeline struct {
	segmenter   segmenter.Segmenter
	tagger      ClauseTagger
	batches     domain.BatchStore
	concurrency int
	previewCap  int
	reportCap   int
	log         logger.Logger
	metrics     *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithCaps sets the clause caps used by Preview and Report.
func WithCaps(preview, report int) Option {
	return func(p *Pipeline) {
		if preview > 0 {
			p.previewCap = preview
		}
		if report > 0 {
			p.reportCap = report
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(seg segmenter.Segmenter, tagger ClauseTagger, batches domain.BatchStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		segmenter:   seg,
		tagger:      tagger,
		batches:     batches,
		concurrency: 4,
		previewCap:  20,
		reportCap:   10,
		log:         logger.NewNop(),
		metrics:     metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preview processes a document for interactive review.
func (p *Pipeline) Preview(ctx context.Context, filename, text string) (domain.TaggedBatch, error) {
	return p.Process(ctx, filename, text, p.previewCap)
}

// Report processes a document for the rendered risk report.
func (p *Pipeline) Report(ctx context.Context, filename, text string) (domain.TaggedBatch, error) {
	return p.Process(ctx, filename, text, p.reportCap)
}

// Process tags at most maxClauses clauses of text in document order. A hard tagging failure aborts
// the whole batch with a *domain.ClauseError; nothing is stored in that case.
func (p *Pipeline) Process(ctx context.Context, filename, text string, maxClauses int) (batch domain.TaggedBatch, err error) {
	start := time.Now()
	defer func() { p.metrics.ObserveBatch(err) }()

	clauses := segmenter.Clauses(p.segmenter, text)
	found := len(clauses)
	if maxClauses > 0 && len(clauses) > maxClauses {
		clauses = clauses[:maxClauses]
	}

	tagged := make([]domain.TaggedClause, len(clauses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, clause := range clauses {
		g.Go(func() error {
			tc, err := p.tagger.Tag(gctx, clause.Text)
			if err != nil {
				return &domain.ClauseError{Index: clause.Index, Err: err}
			}
			tagged[clause.Index] = tc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Error(logModule, "batch aborted", map[string]interface{}{
			"filename": filename,
			"error":    err,
		})
		return domain.TaggedBatch{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.TaggedBatch{}, err
	}

	batch, err = p.batches.Save(domain.TaggedBatch{
		Filename: filename,
		Cap:      maxClauses,
		Clauses:  tagged,
	})
	if err != nil {
		return domain.TaggedBatch{}, err
	}

	p.log.Info(logModule, "batch tagged", map[string]interface{}{
		"batch_id":    batch.ID,
		"filename":    filename,
		"segments":    found,
		"tagged":      len(tagged),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return batch, nil
}
