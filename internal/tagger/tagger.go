// Package tagger annotates a single clause with categories, a risk score, a summary and,
// for risky clauses, a suggested redline.
//
// Classification and scoring failures are hard: Tag returns an error and the caller has no
// usable result. Generation failures are soft: the affected field holds an error marker and
// its name is added to TaggedClause.Warnings.
package tagger

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"clausewise/internal/domain"
	"clausewise/internal/logger"
	"clausewise/internal/metrics"
)

const (
	// DefaultConfidenceThreshold is the minimum classifier confidence for a label to be kept.
	DefaultConfidenceThreshold = 0.5
	// DefaultRedlineThreshold gates the redline generation call.
	DefaultRedlineThreshold = 70

	// ErrorMarkerPrefix starts every field that holds a generation failure.
	ErrorMarkerPrefix = "Error: "

	logModule = "tagger"
)

// Tagger orchestrates the classifier, scorer and generation collaborators for one clause.
type Tagger struct {
	classifier       domain.Classifier
	scorer           RiskScorer
	summarizer       Summarizer
	redliner         Redliner
	threshold        float64
	redlineThreshold int
	log              logger.Logger
	metrics          *metrics.Metrics
}

// Option configures a Tagger.
type Option func(*Tagger)

func WithConfidenceThreshold(th float64) Option {
	return func(t *Tagger) { t.threshold = th }
}

func WithRedlineThreshold(th int) Option {
	return func(t *Tagger) { t.redlineThreshold = th }
}

func WithLogger(l logger.Logger) Option {
	return func(t *Tagger) { t.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tagger) { t.metrics = m }
}

func New(classifier domain.Classifier, scorer RiskScorer, summarizer Summarizer, redliner Redliner, opts ...Option) *Tagger {
	t := &Tagger{
		classifier:       classifier,
		scorer:           scorer,
		summarizer:       summarizer,
		redliner:         redliner,
		threshold:        DefaultConfidenceThreshold,
		redlineThreshold: DefaultRedlineThreshold,
		log:              logger.NewNop(),
		metrics:          metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// generation is the outcome of a soft-failing collaborator call.
type generation struct {
	text string
	err  error
}

// value is the text to store: the output, or an error marker when the call failed.
func (g generation) value() string {
	if g.err != nil {
		return ErrorMarkerPrefix + g.err.Error()
	}
	return g.text
}

// Tag annotates one clause. Classification, scoring and summarization run concurrently;
// the redline call waits for the score.
func (t *Tagger) Tag(ctx context.Context, clause string) (domain.TaggedClause, error) {
	var (
		categories []string
		score      int
		summary    generation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = t.Classify(gctx, clause)
		return err
	})
	g.Go(func() error {
		s, err := t.scorer.Score(gctx, clause)
		if err != nil {
			return &domain.ScoringError{Err: err}
		}
		score = s
		return nil
	})
	g.Go(func() error {
		summary = t.run(gctx, "summary", func(ctx context.Context) (string, error) {
			if t.summarizer == nil {
				return "", domain.ErrNoGenerator
			}
			return t.summarizer.Summarize(ctx, clause)
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.TaggedClause{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.TaggedClause{}, err
	}

	tagged := domain.TaggedClause{
		Text:       clause,
		Categories: categories,
		RiskScore:  score,
		Summary:    summary.value(),
	}
	if summary.err != nil {
		tagged.Warnings = append(tagged.Warnings, "summary")
	}

	if score >= t.redlineThreshold {
		suggestion := t.run(ctx, "suggestion", func(ctx context.Context) (string, error) {
			if t.redliner == nil {
				return "", domain.ErrNoGenerator
			}
			return t.redliner.Redline(ctx, clause)
		})
		if err := ctx.Err(); err != nil {
			return domain.TaggedClause{}, err
		}
		tagged.Suggestion = suggestion.value()
		if suggestion.err != nil {
			tagged.Warnings = append(tagged.Warnings, "suggestion")
		}
	}

	t.metrics.ClausesTagged.Inc()
	t.metrics.RiskScores.Observe(float64(score))
	return tagged, nil
}

// Classify returns the labels whose confidence meets the threshold, in the order the
// classifier reports them, or ["other"] when none do.
func (t *Tagger) Classify(ctx context.Context, clause string) ([]string, error) {
	preds, err := t.classifier.Classify(ctx, clause)
	if err != nil {
		return nil, &domain.ClassificationError{Err: err}
	}
	var labels []string
	seen := make(map[string]struct{}, len(preds))
	for _, p := range preds {
		if p.Confidence < t.threshold {
			continue
		}
		if _, dup := seen[p.Label]; dup {
			continue
		}
		seen[p.Label] = struct{}{}
		labels = append(labels, p.Label)
	}
	if len(labels) == 0 {
		return []string{domain.OtherCategory}, nil
	}
	return labels, nil
}

func (t *Tagger) run(ctx context.Context, task string, fn func(context.Context) (string, error)) generation {
	start := time.Now()
	text, err := fn(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.metrics.GenerationFailures.WithLabelValues(task).Inc()
			t.log.Warn(logModule, "generation failed, storing error marker", map[string]interface{}{
				"task":  task,
				"error": err.Error(),
			})
		}
		return generation{err: &domain.GenerationError{Task: task, Err: err}}
	}
	t.log.Debug(logModule, "generation done", map[string]interface{}{
		"task":        task,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return generation{text: text}
}
