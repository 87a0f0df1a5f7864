// Package service wires extraction, tagging, indexing and retrieval into the review and
// report flows the CLI and TUI drive.
package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"clausewise/internal/domain"
	"clausewise/internal/logger"
)

const logModule = "service"

// Batches is the pipeline surface the service needs.
type Batches interface {
	Preview(ctx context.Context, filename, text string) (domain.TaggedBatch, error)
	Report(ctx context.Context, filename, text string) (domain.TaggedBatch, error)
}

// BatchLookup resolves a per-upload batch handle.
type BatchLookup interface {
	Get(id string) (domain.TaggedBatch, error)
}

// Indexer builds and drops session indexes.
type Indexer interface {
	Build(ctx context.Context, batch domain.TaggedBatch, sessionID string) (domain.IndexManifest, error)
	Drop(ctx context.Context, sessionID string) error
}

// Retriever searches session indexes.
type Retriever interface {
	Query(ctx context.Context, question, sessionID string, k int) ([]domain.RetrievalChunk, error)
	Answer(ctx context.Context, question, sessionID string, k int) (domain.Answer, error)
}

// ClauseClassifier labels a single clause.
type ClauseClassifier interface {
	Classify(ctx context.Context, clause string) ([]string, error)
}

// ReportWriter renders a tagged batch.
type ReportWriter interface {
	Render(w io.Writer, batch domain.TaggedBatch) (int, error)
}

// Review is the outcome of the review flow.
type Review struct {
	Batch    domain.TaggedBatch
	Session  string
	Manifest domain.IndexManifest
}

// ReviewService runs the end-to-end flows over a contract file.
type ReviewService struct {
	extractor  domain.Extractor
	batches    Batches
	handles    BatchLookup
	indexer    Indexer
	retriever  Retriever
	classifier ClauseClassifier
	reports    ReportWriter
	log        logger.Logger
}

func NewReviewService(extractor domain.Extractor, batches Batches, handles BatchLookup, indexer Indexer,
	retriever Retriever, classifier ClauseClassifier, reports ReportWriter, log logger.Logger) *ReviewService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReviewService{
		extractor:  extractor,
		batches:    batches,
		handles:    handles,
		indexer:    indexer,
		retriever:  retriever,
		classifier: classifier,
		reports:    reports,
		log:        log,
	}
}

// Review extracts path, tags the preview clauses and builds the session index from them.
func (s *ReviewService) Review(ctx context.Context, path, sessionID string) (Review, error) {
	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return Review{}, err
	}
	batch, err := s.batches.Preview(ctx, filepath.Base(path), text)
	if err != nil {
		return Review{}, fmt.Errorf("tag %s: %w", filepath.Base(path), err)
	}
	manifest, err := s.Index(ctx, batch.ID, sessionID)
	if err != nil {
		return Review{}, err
	}
	session, _, _ := domain.ResolveSessionID(sessionID)
	s.log.Info(logModule, "contract reviewed", map[string]interface{}{
		"file":     batch.Filename,
		"batch_id": batch.ID,
		"clauses":  len(batch.Clauses),
		"session":  session,
	})
	return Review{Batch: batch, Session: session, Manifest: manifest}, nil
}

// Index builds the session index from the batch stored under batchID. An unknown or expired
// handle fails with domain.ErrBatchNotFound.
func (s *ReviewService) Index(ctx context.Context, batchID, sessionID string) (domain.IndexManifest, error) {
	batch, err := s.handles.Get(batchID)
	if err != nil {
		return domain.IndexManifest{}, err
	}
	return s.indexer.Build(ctx, batch, sessionID)
}

// Report extracts path, tags the report clauses and renders them to w.
func (s *ReviewService) Report(ctx context.Context, path string, w io.Writer) (domain.TaggedBatch, int, error) {
	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return domain.TaggedBatch{}, 0, err
	}
	batch, err := s.batches.Report(ctx, filepath.Base(path), text)
	if err != nil {
		return domain.TaggedBatch{}, 0, fmt.Errorf("tag %s: %w", filepath.Base(path), err)
	}
	pages, err := s.reports.Render(w, batch)
	if err != nil {
		return domain.TaggedBatch{}, 0, fmt.Errorf("render report: %w", err)
	}
	s.log.Info(logModule, "report rendered", map[string]interface{}{
		"file":    batch.Filename,
		"clauses": len(batch.Clauses),
		"pages":   pages,
	})
	return batch, pages, nil
}

// Ask returns the chunks of sessionID most relevant to question.
func (s *ReviewService) Ask(ctx context.Context, question, sessionID string, k int) ([]domain.RetrievalChunk, error) {
	return s.retriever.Query(ctx, question, sessionID, k)
}

// Answer answers question from the chunks of sessionID.
func (s *ReviewService) Answer(ctx context.Context, question, sessionID string, k int) (domain.Answer, error) {
	return s.retriever.Answer(ctx, question, sessionID, k)
}

// Classify labels a single clause without scoring or generation.
func (s *ReviewService) Classify(ctx context.Context, clause string) ([]string, error) {
	return s.classifier.Classify(ctx, clause)
}

// Drop deletes the index of sessionID.
func (s *ReviewService) Drop(ctx context.Context, sessionID string) error {
	return s.indexer.Drop(ctx, sessionID)
}
