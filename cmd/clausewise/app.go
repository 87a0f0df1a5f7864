package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"clausewise/internal/batchstore"
	"clausewise/internal/chunker"
	"clausewise/internal/config"
	"clausewise/internal/domain"
	"clausewise/internal/embedding/hashing"
	"clausewise/internal/extract"
	"clausewise/internal/index"
	"clausewise/internal/index/chromemstore"
	"clausewise/internal/index/memory"
	"clausewise/internal/index/qdrant"
	"clausewise/internal/llm/gemini"
	"clausewise/internal/llm/openai"
	"clausewise/internal/logger"
	"clausewise/internal/metrics"
	"clausewise/internal/pipeline"
	"clausewise/internal/query"
	"clausewise/internal/report"
	"clausewise/internal/segmenter"
	"clausewise/internal/service"
	"clausewise/internal/summarizer"
	"clausewise/internal/tagger"
)

// app holds the assembled components for one CLI invocation.
type app struct {
	cfg      *config.AppConfig
	log      logger.Logger
	registry *prometheus.Registry
	svc      *service.ReviewService
	closers  []io.Closer
}

func newApp(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	m := metrics.New(a.registry)

	emb, err := a.newEmbedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	gen, err := a.newGenerator(ctx)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	store, err := a.newStore()
	if err != nil {
		return nil, fmt.Errorf("index store: %w", err)
	}

	var (
		sum      tagger.Summarizer = summarizer.NewFrequencySummarizer(2)
		redliner tagger.Redliner
	)
	if gen != nil {
		sum = tagger.NewPromptSummarizer(gen)
		redliner = tagger.NewPromptRedliner(gen)
	}
	tg := tagger.New(tagger.NewKeywordClassifier(), tagger.NewKeywordScorer(), sum, redliner,
		tagger.WithConfidenceThreshold(cfg.Classifier.Threshold),
		tagger.WithRedlineThreshold(cfg.Risk.RedlineThreshold),
		tagger.WithLogger(log),
		tagger.WithMetrics(m),
	)

	batches := batchstore.New(time.Duration(cfg.Batches.TTLMinutes) * time.Minute)
	pipe := pipeline.New(segmenter.NewHeuristicSegmenter(), tg, batches,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithCaps(cfg.Pipeline.PreviewCap, cfg.Pipeline.ReportCap),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
	)

	locks := index.NewLocks()
	builder := index.NewBuilder(chunker.NewRecursiveChunker(cfg.Chunker.Size, cfg.Chunker.Overlap), emb, store,
		index.WithLocks(locks),
		index.WithConcurrency(cfg.Pipeline.Concurrency),
		index.WithLogger(log),
		index.WithMetrics(m),
	)
	engineOpts := []query.Option{
		query.WithLocks(locks),
		query.WithTopK(cfg.Query.TopK),
		query.WithLogger(log),
		query.WithMetrics(m),
	}
	if gen != nil {
		engineOpts = append(engineOpts, query.WithGenerator(gen))
	}
	engine := query.NewEngine(emb, store, engineOpts...)

	a.svc = service.NewReviewService(extract.NewRouter(), pipe, batches, builder, engine, tg, report.New(0), log)
	return a, nil
}

func (a *app) newEmbedder(ctx context.Context) (domain.Embedder, error) {
	ec := a.cfg.Embedder
	switch ec.Type {
	case "hashing":
		return hashing.NewEmbedder(ec.Dimension), nil
	case "openai":
		if ec.OpenAI == nil {
			return nil, errors.New("embedder.openai section missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   ec.OpenAI.BaseURL,
			APIKeyEnv: ec.OpenAI.APIKeyEnv,
			Model:     ec.OpenAI.Model,
			Timeout:   time.Duration(ec.OpenAI.TimeoutSecs) * time.Second,
		})
	case "gemini":
		if ec.Gemini == nil {
			return nil, errors.New("embedder.gemini section missing")
		}
		c, err := gemini.NewClient(ctx, gemini.Config{APIKeyEnv: ec.Gemini.APIKeyEnv, EmbeddingModel: ec.Gemini.Model})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", ec.Type)
	}
}

// newGenerator returns nil when generation is disabled.
func (a *app) newGenerator(ctx context.Context) (domain.Generator, error) {
	gc := a.cfg.Generator
	switch gc.Type {
	case "none":
		return nil, nil
	case "openai":
		if gc.OpenAI == nil {
			return nil, errors.New("generator.openai section missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   gc.OpenAI.BaseURL,
			APIKeyEnv: gc.OpenAI.APIKeyEnv,
			Model:     gc.OpenAI.Model,
			Timeout:   time.Duration(gc.OpenAI.TimeoutSecs) * time.Second,
		})
	case "gemini":
		if gc.Gemini == nil {
			return nil, errors.New("generator.gemini section missing")
		}
		c, err := gemini.NewClient(ctx, gemini.Config{APIKeyEnv: gc.Gemini.APIKeyEnv, Model: gc.Gemini.Model})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown generator %q", gc.Type)
	}
}

func (a *app) newStore() (domain.SessionStore, error) {
	ic := a.cfg.Index
	switch ic.Type {
	case "chromem":
		return chromemstore.NewStore(ic.BaseDir)
	case "memory":
		a.log.Warn("main", "memory index does not outlive this process", nil)
		return memory.NewStore(), nil
	case "qdrant":
		if ic.Qdrant == nil {
			return nil, errors.New("index.qdrant section missing")
		}
		return qdrant.NewStore(qdrant.Config{
			URL:              ic.Qdrant.URL,
			APIKey:           ic.Qdrant.APIKey,
			CollectionPrefix: ic.Qdrant.CollectionPrefix,
			Timeout:          time.Duration(ic.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown index type %q", ic.Type)
	}
}

// close releases clients and writes the metrics textfile when enabled.
func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("main", "close client", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.cfg.Metrics.Enabled {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			a.log.Error("main", "write metrics textfile", map[string]interface{}{"error": err})
		}
	}
}
