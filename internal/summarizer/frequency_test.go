package summarizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeKeepsAtMostTwoSentencesInOrder(t *testing.T) {
	s := NewFrequencySummarizer(2)
	text := "The supplier shall deliver goods monthly. Payment is due in thirty days. " +
		"The supplier shall deliver goods to the buyer warehouse. Late goods incur a supplier penalty."

	got, err := s.Summarize(context.Background(), text)
	require.NoError(t, err)

	sentences := strings.SplitAfter(got, ".")
	nonEmpty := 0
	for _, sent := range sentences {
		if strings.TrimSpace(sent) != "" {
			nonEmpty++
		}
	}
	assert.Equal(t, 2, nonEmpty)
	for _, sent := range sentences {
		if trimmed := strings.TrimSpace(sent); trimmed != "" {
			assert.Contains(t, text, trimmed)
		}
	}
}

func TestSummarizeWithoutPunctuation(t *testing.T) {
	s := NewFrequencySummarizer(0)
	got, err := s.Summarize(context.Background(), "  no terminal punctuation here  ")
	require.NoError(t, err)
	assert.Equal(t, "no terminal punctuation here", got)
}

func TestSummarizeStripsMarkerAndHeading(t *testing.T) {
	s := NewFrequencySummarizer(2)
	got, err := s.Summarize(context.Background(), "7. INDEMNIFICATION. The Supplier shall indemnify the Buyer.")
	require.NoError(t, err)
	assert.Equal(t, "The Supplier shall indemnify the Buyer.", got)
}

func TestSummarizeDoesNotSplitAbbreviations(t *testing.T) {
	s := NewFrequencySummarizer(1)
	got, err := s.Summarize(context.Background(), "Acme Inc. shall not assign this Agreement. Notices go by mail.")
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc. shall not assign this Agreement.", got)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"terminators", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"decimal", "Fees rise 2.5 percent. Done.", []string{"Fees rise 2.5 percent.", "Done."}},
		{"abbreviation", "See Sec. 4 below. Done.", []string{"See Sec. 4 below.", "Done."}},
		{"trailing fragment", "First. and then", []string{"First.", "and then"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.in))
		})
	}
}
