package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	c := NewRecursiveChunker(512, 64)
	got := c.Split("  Each party shall indemnify and hold harmless the other party.  ")
	assert.Equal(t, []string{"Each party shall indemnify and hold harmless the other party."}, got)
}

func TestSplitBlank(t *testing.T) {
	c := NewRecursiveChunker(512, 64)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split(" \n\n "))
}

func TestSplitHardCutKeepsOverlap(t *testing.T) {
	c := NewRecursiveChunker(512, 64)
	var b strings.Builder
	for i := 0; i < 1500; i++ {
		b.WriteByte(byte('a' + i%26))
	}

	got := c.Split(b.String())

	require.Len(t, got, 4)
	assert.Equal(t, []int{512, 512, 512, 156}, lengths(got))
	for i := 0; i+1 < len(got); i++ {
		assert.Equal(t, got[i][len(got[i])-64:], got[i+1][:64], "chunk %d overlap", i)
	}
}

func TestSplitPrefersWordBoundaries(t *testing.T) {
	c := NewRecursiveChunker(512, 64)
	words := make([]string, 400)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	text := strings.Join(words, " ")

	got := c.Split(text)

	require.Greater(t, len(got), 1)
	for i, chunk := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 512)
		assert.Contains(t, text, chunk)
		assert.False(t, strings.HasSuffix(chunk, "wor"), "chunk %d cut mid-word", i)
		if i > 0 {
			first := strings.Fields(chunk)[0]
			assert.Contains(t, got[i-1], first, "chunk %d should start inside the previous chunk", i)
		}
	}
	assert.True(t, strings.HasPrefix(got[0], "word0 "))
	assert.True(t, strings.HasSuffix(got[len(got)-1], "word399"))
}

func TestSplitPrefersParagraphs(t *testing.T) {
	c := NewRecursiveChunker(512, 64)
	p1 := strings.TrimSpace("AAAAAAAAAA " + strings.Repeat("alpha ", 48))
	p2 := strings.TrimSpace(strings.Repeat("Beta ", 60))

	got := c.Split(p1 + "\n\n" + p2)

	require.Len(t, got, 2)
	assert.Equal(t, p1, got[0])
	assert.Equal(t, p2, got[1])
}

func TestSplitCountsRunes(t *testing.T) {
	c := NewRecursiveChunker(10, 2)
	got := c.Split(strings.Repeat("é", 25))
	for _, chunk := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 10)
		assert.True(t, utf8.ValidString(chunk))
	}
}

func TestNewRecursiveChunkerDefaults(t *testing.T) {
	c := NewRecursiveChunker(0, -1)
	assert.Equal(t, 512, c.size)
	assert.Equal(t, 0, c.overlap)

	c = NewRecursiveChunker(10, 10)
	assert.Equal(t, 0, c.overlap)
}

func lengths(chunks []string) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = utf8.RuneCountInString(c)
	}
	return out
}
