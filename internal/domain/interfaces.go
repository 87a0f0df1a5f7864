package domain

import (
	"context"
	"time"
)

// DefaultSessionID is used when a query or build names no session.
const DefaultSessionID = "default"

// OtherCategory is assigned when no classifier label clears the threshold.
const OtherCategory = "other"

// Clause is a single candidate clause cut out of a contract by the segmenter.
type Clause struct {
	Index int
	Text  string
}

// TaggedClause is a clause annotated by the tagger.
type TaggedClause struct {
	Text       string   `json:"text"`
	Categories []string `json:"categories"`
	RiskScore  int      `json:"risk_score"`
	Summary    string   `json:"summary"`
	Suggestion string   `json:"suggestion"`
	// Warnings names the fields that hold a generation error marker instead of model output.
	Warnings []string `json:"warnings,omitempty"`
}

// TaggedBatch is the ordered result of processing one document.
type TaggedBatch struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	Cap       int            `json:"cap"`
	Clauses   []TaggedClause `json:"clauses"`
	CreatedAt time.Time      `json:"created_at"`
}

// RetrievalChunk is a length-bounded piece of a tagged clause stored in a session index.
type RetrievalChunk struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Categories  []string `json:"categories"`
	ClauseIndex int      `json:"clause_index"`
	// Score is the cosine similarity to the query; zero outside search results.
	Score float32 `json:"score,omitempty"`
}

// Answer is a generated response over retrieved chunks.
type Answer struct {
	Text    string           `json:"answer"`
	Sources []RetrievalChunk `json:"sources"`
}

// Prediction is one classifier label with its confidence in [0,1].
type Prediction struct {
	Label      string
	Confidence float64
}

// Extractor turns an uploaded file into raw text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Classifier assigns zero or more category labels to clause text.
// Predictions are returned in label-definition order.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Prediction, error)
}

// Generator produces natural-language text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder converts free text into a fixed-length vector.
// Build and query must use embedders with the same Name and Dimension.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits tagged clause text into retrieval chunks.
type Chunker interface {
	Split(text string) []string
}

// IndexManifest records how a session index was built.
type IndexManifest struct {
	Embedder  string `json:"embedder"`
	Dimension int    `json:"dimension"`
	Chunks    int    `json:"chunks"`
}

// SessionStore persists session indexes. Implementations replace a session's content as a
// whole and never mix data between sessions. Callers serialize writes per session id.
type SessionStore interface {
	Replace(ctx context.Context, sessionID string, manifest IndexManifest, chunks []RetrievalChunk, vectors [][]float32) error
	Manifest(ctx context.Context, sessionID string) (IndexManifest, bool, error)
	Search(ctx context.Context, sessionID string, vector []float32, topK int) ([]RetrievalChunk, error)
	Drop(ctx context.Context, sessionID string) error
}

// BatchStore hands out per-upload handles for tagged batches.
type BatchStore interface {
	Save(batch TaggedBatch) (TaggedBatch, error)
	Get(id string) (TaggedBatch, error)
}
