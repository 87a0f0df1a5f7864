package tagger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clausewise/internal/domain"
)

const summaryPrompt = `You are a legal assistant. Summarize the following contract clause clearly and concisely in 1-2 sentences:

Clause:
%s

Summary:`

const redlinePrompt = `You are a legal expert. Rewrite the following contract clause to reduce legal risk while preserving its original intent.
Make it more favorable to the receiving party.

Original Clause:
%s

Redlined Safer Clause:`

// Summarizer produces a one or two sentence summary of a clause.
type Summarizer interface {
	Summarize(ctx context.Context, clause string) (string, error)
}

// Redliner rewrites a risky clause into a safer version.
type Redliner interface {
	Redline(ctx context.Context, clause string) (string, error)
}

// PromptSummarizer summarizes through a generator.
type PromptSummarizer struct {
	gen domain.Generator
}

func NewPromptSummarizer(gen domain.Generator) *PromptSummarizer {
	return &PromptSummarizer{gen: gen}
}

func (s *PromptSummarizer) Summarize(ctx context.Context, clause string) (string, error) {
	return generate(ctx, s.gen, fmt.Sprintf(summaryPrompt, clause))
}

// PromptRedliner rewrites clauses through a generator.
type PromptRedliner struct {
	gen domain.Generator
}

func NewPromptRedliner(gen domain.Generator) *PromptRedliner {
	return &PromptRedliner{gen: gen}
}

func (r *PromptRedliner) Redline(ctx context.Context, clause string) (string, error) {
	return generate(ctx, r.gen, fmt.Sprintf(redlinePrompt, clause))
}

func generate(ctx context.Context, gen domain.Generator, prompt string) (string, error) {
	if gen == nil {
		return "", domain.ErrNoGenerator
	}
	out, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("empty generation")
	}
	return out, nil
}
