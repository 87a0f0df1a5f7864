// Package segmenter splits raw contract text into candidate clauses.
package segmenter

import (
	"regexp"
	"strings"

	"clausewise/internal/domain"
)

// MinClauseLength is the trimmed length a fragment must exceed to count as a clause.
const MinClauseLength = 40

// Segmenter splits document text into ordered clause strings.
type Segmenter interface {
	Segment(text string) []string
}

// boundary matches at a newline that starts a numbered or lettered list item, an ALL-CAPS
// heading line of five or more characters, or a blank line.
var boundary = regexp.MustCompile(`^(?:\n\s*\d+(?:\.\d+)*[.)]|\n\s*\(?(?:[a-zA-Z]|[ivxlc]+)\)|\n\s*[A-Z\s]{5,}\n|\n\n)`)

// HeuristicSegmenter cuts before section boundaries and drops short fragments.
// It is an approximation: documents with unusual formatting may be split badly.
type HeuristicSegmenter struct {
	minLength int
}

func NewHeuristicSegmenter() *HeuristicSegmenter {
	return &HeuristicSegmenter{minLength: MinClauseLength}
}

// Segment returns clauses in document order. The boundary marker stays with the clause
// that follows it.
func (s *HeuristicSegmenter) Segment(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var clauses []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '\n' || i == start {
			continue
		}
		if !boundary.MatchString(text[i:]) {
			continue
		}
		clauses = s.appendFragment(clauses, text[start:i])
		start = i
	}
	return s.appendFragment(clauses, text[start:])
}

func (s *HeuristicSegmenter) appendFragment(clauses []string, fragment string) []string {
	trimmed := strings.TrimSpace(fragment)
	if len(trimmed) <= s.minLength {
		return clauses
	}
	return append(clauses, trimmed)
}

// Clauses segments text with s and numbers the result in document order.
func Clauses(s Segmenter, text string) []domain.Clause {
	segments := s.Segment(text)
	clauses := make([]domain.Clause, len(segments))
	for i, seg := range segments {
		clauses[i] = domain.Clause{Index: i, Text: seg}
	}
	return clauses
}
