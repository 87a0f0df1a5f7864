package tagger

import (
	"context"
	"math"
	"regexp"
	"strings"

	"clausewise/internal/domain"
)

// Labels are the clause categories in definition order. Classification results keep this
// order regardless of confidence.
var Labels = []string{
	"indemnity", "arbitration", "termination", "governing_law", "confidentiality",
	"force_majeure", "assignment", "ip", "change_control", "limitation_liability",
	"mfn", "non_compete", "non_disparagement",
}

var labelKeywords = map[string][]string{
	"indemnity":            {"indemnif", "indemnity", "hold harmless", "compensate"},
	"arbitration":          {"arbitration", "arbitrator", "dispute resolution", "tribunal"},
	"termination":          {"terminate", "termination", "expiry", "expiration"},
	"governing_law":        {"governing law", "governed by", "laws of", "jurisdiction", "venue"},
	"confidentiality":      {"confidential", "nondisclosure", "non-disclosure", "privacy"},
	"force_majeure":        {"force majeure", "acts of god", "beyond its reasonable control", "beyond control"},
	"assignment":           {"assign", "transfer this agreement"},
	"ip":                   {"intellectual property", "patent", "copyright", "trademark", "license"},
	"change_control":       {"change order", "change request", "change control"},
	"limitation_liability": {"limitation of liability", "liability", "consequential damages", "liable"},
	"mfn":                  {"most favored", "most favoured"},
	"non_compete":          {"non-compete", "noncompete", "not compete", "compete with"},
	"non_disparagement":    {"disparag"},
}

// KeywordClassifier is the default multi-label classifier. A label's confidence grows with
// the number of distinct keywords that start a word in the clause: one hit gives 0.5, two
// give 0.75 and so on.
type KeywordClassifier struct {
	patterns map[string][]*regexp.Regexp
}

func NewKeywordClassifier() *KeywordClassifier {
	patterns := make(map[string][]*regexp.Regexp, len(labelKeywords))
	for label, kws := range labelKeywords {
		for _, kw := range kws {
			patterns[label] = append(patterns[label], regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)))
		}
	}
	return &KeywordClassifier{patterns: patterns}
}

// Classify returns a prediction for every label with at least one keyword hit.
func (c *KeywordClassifier) Classify(ctx context.Context, text string) ([]domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(text)
	var out []domain.Prediction
	for _, label := range Labels {
		hits := 0
		for _, re := range c.patterns[label] {
			if re.MatchString(lower) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, domain.Prediction{Label: label, Confidence: 1 - math.Pow(0.5, float64(hits))})
	}
	return out, nil
}
