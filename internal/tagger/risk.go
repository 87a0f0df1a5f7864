package tagger

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
)

// BaseRiskScore applies when no risk keyword matches.
const BaseRiskScore = 10

// RiskScorer assigns a risk score in [0,100] to clause text.
type RiskScorer interface {
	Score(ctx context.Context, text string) (int, error)
}

type riskKeyword struct {
	keyword  string
	severity int
}

var riskKeywords = []riskKeyword{
	{"indemnify", 90},
	{"liability", 80},
	{"terminate", 70},
	{"penalty", 85},
	{"arbitration", 30},
	{"force majeure", 40},
	{"governing law", 20},
	{"confidential", 20},
}

// NoiseFunc returns the perturbation added to a base score.
type NoiseFunc func() int

// KeywordScorer is an approximate heuristic, not a calibrated risk model: the score is the
// highest severity among matched keywords (BaseRiskScore when none match), perturbed by
// noise in [-5,5] and clamped to [0,100].
type KeywordScorer struct {
	noise NoiseFunc
}

// ScorerOption configures a KeywordScorer.
type ScorerOption func(*KeywordScorer)

// WithNoise replaces the default unseeded noise source.
func WithNoise(fn NoiseFunc) ScorerOption {
	return func(s *KeywordScorer) { s.noise = fn }
}

// WithoutNoise makes scores deterministic.
func WithoutNoise() ScorerOption {
	return WithNoise(func() int { return 0 })
}

// SeededNoise returns a reproducible noise source in [-5,5].
func SeededNoise(seed uint64) NoiseFunc {
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed))
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return r.IntN(11) - 5
	}
}

func NewKeywordScorer(opts ...ScorerOption) *KeywordScorer {
	s := &KeywordScorer{noise: func() int { return rand.IntN(11) - 5 }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseScore returns the score before noise and clamping.
func (s *KeywordScorer) BaseScore(text string) int {
	lower := strings.ToLower(text)
	score := BaseRiskScore
	for _, kw := range riskKeywords {
		if kw.severity > score && strings.Contains(lower, kw.keyword) {
			score = kw.severity
		}
	}
	return score
}

func (s *KeywordScorer) Score(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return clamp(s.BaseScore(text)+s.noise(), 0, 100), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
