package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/batchstore"
	"clausewise/internal/domain"
	"clausewise/internal/segmenter"
	"clausewise/internal/tagger"
)

// echoTagger returns the clause text untouched, sleeping longer for earlier clauses so
// completion order differs from input order.
type echoTagger struct {
	failOn   string
	inflight atomic.Int32
	peak     atomic.Int32
}

func (e *echoTagger) Tag(ctx context.Context, clause string) (domain.TaggedClause, error) {
	n := e.inflight.Add(1)
	defer e.inflight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if e.failOn != "" && strings.Contains(clause, e.failOn) {
		return domain.TaggedClause{}, &domain.ClassificationError{Err: errors.New("boom")}
	}
	select {
	case <-time.After(time.Duration(len(clause)%5) * time.Millisecond):
	case <-ctx.Done():
		return domain.TaggedClause{}, ctx.Err()
	}
	return domain.TaggedClause{Text: clause, Categories: []string{domain.OtherCategory}}, nil
}

func numberedContract(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d. Clause number %d sets out obligations that bind both parties here.\n", i, i)
	}
	return b.String()
}

func TestProcessCapsAndKeepsOrder(t *testing.T) {
	store := batchstore.New(time.Minute)
	tg := &echoTagger{}
	p := New(segmenter.NewHeuristicSegmenter(), tg, store, WithConcurrency(3))

	batch, err := p.Process(context.Background(), "msa.txt", numberedContract(30), 20)
	require.NoError(t, err)

	require.Len(t, batch.Clauses, 20)
	for i, c := range batch.Clauses {
		assert.True(t, strings.HasPrefix(c.Text, fmt.Sprintf("%d. Clause number %d ", i+1, i+1)), c.Text)
	}
	assert.LessOrEqual(t, tg.peak.Load(), int32(3))
	assert.Equal(t, 20, batch.Cap)
	assert.Equal(t, "msa.txt", batch.Filename)

	stored, err := store.Get(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch, stored)
}

func TestPreviewAndReportCaps(t *testing.T) {
	p := New(segmenter.NewHeuristicSegmenter(), &echoTagger{}, batchstore.New(time.Minute))
	text := numberedContract(30)

	preview, err := p.Preview(context.Background(), "a.txt", text)
	require.NoError(t, err)
	assert.Len(t, preview.Clauses, 20)

	report, err := p.Report(context.Background(), "a.txt", text)
	require.NoError(t, err)
	assert.Len(t, report.Clauses, 10)
	assert.NotEqual(t, preview.ID, report.ID)
}

func TestProcessFewerClausesThanCap(t *testing.T) {
	p := New(segmenter.NewHeuristicSegmenter(), &echoTagger{}, batchstore.New(time.Minute))
	batch, err := p.Process(context.Background(), "a.txt", numberedContract(3), 20)
	require.NoError(t, err)
	assert.Len(t, batch.Clauses, 3)
}

func TestProcessEmptyDocument(t *testing.T) {
	p := New(segmenter.NewHeuristicSegmenter(), &echoTagger{}, batchstore.New(time.Minute))
	batch, err := p.Process(context.Background(), "empty.txt", "too short", 20)
	require.NoError(t, err)
	assert.Empty(t, batch.Clauses)
}

func TestProcessHardFailureNamesClause(t *testing.T) {
	store := batchstore.New(time.Minute)
	p := New(segmenter.NewHeuristicSegmenter(), &echoTagger{failOn: "Clause number 7 "}, store)

	_, err := p.Process(context.Background(), "a.txt", numberedContract(10), 20)
	require.Error(t, err)

	var ce *domain.ClauseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 6, ce.Index)
	var cle *domain.ClassificationError
	assert.ErrorAs(t, err, &cle)
	assert.Equal(t, 0, store.Len())
}

func TestProcessWithRealTagger(t *testing.T) {
	tg := tagger.New(tagger.NewKeywordClassifier(), tagger.NewKeywordScorer(tagger.WithoutNoise()), nil, nil)
	p := New(segmenter.NewHeuristicSegmenter(), tg, batchstore.New(time.Minute))

	text := "1. The Supplier shall indemnify the Buyer against all third party claims.\n" +
		"2. This Agreement is governed by the laws of the State of New York.\n"
	batch, err := p.Process(context.Background(), "a.txt", text, 20)
	require.NoError(t, err)
	require.Len(t, batch.Clauses, 2)

	assert.Equal(t, 90, batch.Clauses[0].RiskScore)
	assert.Contains(t, batch.Clauses[0].Categories, "indemnity")
	assert.Equal(t, []string{"summary", "suggestion"}, batch.Clauses[0].Warnings)

	assert.Equal(t, 10, batch.Clauses[1].RiskScore)
	assert.Equal(t, []string{"governing_law"}, batch.Clauses[1].Categories)
	assert.Empty(t, batch.Clauses[1].Suggestion)
}
