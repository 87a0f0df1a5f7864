// Package summarizer produces extractive clause summaries without a language model.
package summarizer

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	// leading list marker of a clause: "3.", "3.1.", "2)", "(a)", "(iv)"
	listMarkerRe = regexp.MustCompile(`^\s*(?:\(?\d+(?:\.\d+)*[.)]|\([a-zA-Z]{1,4}\)|[a-z]\))\s+`)
)

// abbreviations never end a sentence.
var abbreviations = map[string]struct{}{
	"art": {}, "co": {}, "corp": {}, "e.g": {}, "etc": {}, "i.e": {}, "inc": {}, "ltd": {},
	"no": {}, "para": {}, "sec": {}, "u.s": {}, "vs": {}, "viz": {},
}

// obligationWords mark sentences that state what a party must or must not do.
var obligationWords = map[string]struct{}{
	"shall": {}, "must": {}, "agrees": {}, "warrants": {}, "may": {}, "not": {}, "liable": {},
}

const obligationBoost = 0.5

// FrequencySummarizer is the offline summarizer used when no generator is configured.
// Sentences are ranked by the normalized frequency of their content words, with a bonus for
// sentences carrying an obligation, and the best ones are returned in document order.
type FrequencySummarizer struct {
	maxSentences int
	stopwords    map[string]struct{}
}

// NewFrequencySummarizer creates a summarizer that keeps at most maxSentences sentences.
func NewFrequencySummarizer(maxSentences int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	return &FrequencySummarizer{maxSentences: maxSentences, stopwords: defaultStopwords()}
}

type rankedSentence struct {
	pos   int
	text  string
	score float64
}

// Summarize returns a short extractive summary of a clause.
func (s *FrequencySummarizer) Summarize(_ context.Context, text string) (string, error) {
	sentences := dropHeadings(splitSentences(listMarkerRe.ReplaceAllString(text, "")))
	if len(sentences) <= s.maxSentences {
		return strings.Join(sentences, " "), nil
	}

	freq := make(map[string]float64)
	for _, sent := range sentences {
		for _, w := range words(sent) {
			if _, stop := s.stopwords[w]; !stop {
				freq[w]++
			}
		}
	}
	var top float64
	for _, f := range freq {
		top = math.Max(top, f)
	}

	ranked := make([]rankedSentence, len(sentences))
	for i, sent := range sentences {
		ws := words(sent)
		var score float64
		obliges := false
		for _, w := range ws {
			if top > 0 {
				score += freq[w] / top
			}
			if _, ok := obligationWords[w]; ok {
				obliges = true
			}
		}
		if len(ws) > 0 {
			score /= math.Sqrt(float64(len(ws)))
		}
		if obliges {
			score += obligationBoost
		}
		ranked[i] = rankedSentence{pos: i, text: sent, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	ranked = ranked[:s.maxSentences]
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].pos < ranked[j].pos })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.text
	}
	return strings.Join(out, " "), nil
}

// splitSentences cuts at '.', '!' or '?' followed by whitespace or the end of text, except
// after a known abbreviation. A trailing fragment without a terminator is kept.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && !isSpace(text[i+1]) {
			continue
		}
		if c == '.' && endsWithAbbreviation(text[start:i]) {
			continue
		}
		if sent := strings.TrimSpace(text[start : i+1]); sent != "" {
			out = append(out, sent)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// dropHeadings removes all-caps heading sentences such as "INDEMNIFICATION." unless nothing
// else is left.
func dropHeadings(sentences []string) []string {
	kept := sentences[:0:0]
	for _, s := range sentences {
		if strings.ToUpper(s) != s || strings.ToLower(s) == s {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return sentences
	}
	return kept
}

func endsWithAbbreviation(prefix string) bool {
	fields := strings.Fields(prefix)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(strings.TrimLeft(fields[len(fields)-1], "(\"'"))
	_, ok := abbreviations[last]
	return ok
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	list := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on",
		"at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its",
		"this", "that", "these", "those", "from", "into", "about", "between", "through", "during",
		"before", "after", "above", "below", "under", "over", "than", "so", "such", "any", "all",
		"each", "other", "same", "can", "will", "shall", "may", "must", "hereby", "herein",
		"hereof", "hereunder", "thereof", "party", "parties", "agreement",
	}
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}
