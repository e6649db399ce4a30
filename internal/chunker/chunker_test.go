package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsOverlapNotLessThanSize(t *testing.T) {
	_, err := New(100, 100)
	assert.Error(t, err)

	_, err = New(100, 150)
	assert.Error(t, err)

	_, err = New(0, 0)
	assert.Error(t, err)

	_, err = New(100, -1)
	assert.Error(t, err)

	_, err = New(100, 99)
	assert.NoError(t, err)
}

func TestSplit_EmptyInput(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\n\t  "))
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split("A short paragraph.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "A short paragraph.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartChar)
	assert.Equal(t, len("A short paragraph."), chunks[0].EndChar)
	assert.Equal(t, len("A short paragraph."), chunks[0].CharCount)
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 10) // 60 chars
	para2 := strings.Repeat("beta ", 10)  // 50 chars
	text := para1 + "\n\n" + para2

	c, err := New(80, 0)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, para1+"\n\n", chunks[0].Content)
	assert.Equal(t, para2, chunks[1].Content)
}

func TestSplit_FallsBackToSentences(t *testing.T) {
	// One long line with no paragraph or line breaks
	text := strings.Repeat("This is a sentence. ", 20) // 400 chars

	c, err := New(100, 0)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.CharCount, 100)
		assert.True(t, strings.HasSuffix(strings.TrimSpace(ch.Content), "."),
			"chunks should break at sentence boundaries: %q", ch.Content)
	}
}

func TestSplit_HardCutWhenNoBoundaryExists(t *testing.T) {
	text := strings.Repeat("x", 250)

	c, err := New(100, 0)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, chunks[0].CharCount)
	assert.Equal(t, 100, chunks[1].CharCount)
	assert.Equal(t, 50, chunks[2].CharCount)
}

func TestSplit_OrdinalsAreContiguous(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	chunks := c.Split(strings.Repeat("Some words here. ", 30))
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestSplit_ChunksNeverExceedSize(t *testing.T) {
	texts := []string{
		strings.Repeat("word ", 500),
		strings.Repeat("A sentence here. ", 100),
		strings.Repeat("para\n\n", 200),
		strings.Repeat("z", 1000),
	}

	c, err := New(120, 30)
	require.NoError(t, err)

	for _, text := range texts {
		for _, ch := range c.Split(text) {
			assert.LessOrEqual(t, ch.CharCount, 120)
		}
	}
}

func TestSplit_SpansReconstructOriginalText(t *testing.T) {
	text := "First paragraph with some words.\n\n" +
		strings.Repeat("Second paragraph sentence. ", 15) + "\n\n" +
		"Third paragraph, short."

	c, err := New(100, 20)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	// Each chunk is the exact substring its span claims
	for _, ch := range chunks {
		assert.Equal(t, text[ch.StartChar:ch.EndChar], ch.Content)
	}

	// Concatenating the non-overlapping portions reproduces the input
	var sb strings.Builder
	covered := 0
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.StartChar, covered, "gap between chunks")
		if ch.EndChar > covered {
			sb.WriteString(ch.Content[covered-ch.StartChar:])
			covered = ch.EndChar
		}
	}
	assert.Equal(t, text, sb.String())
}

func TestSplit_OverlapCarriesContextForward(t *testing.T) {
	text := strings.Repeat("Sentence number one. ", 20) // 420 chars

	c, err := New(100, 40)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.Less(t, chunks[i].StartChar, chunks[i-1].EndChar,
			"chunk %d should overlap its predecessor", i)
	}
}

func TestSplit_UnicodeSafeHardCut(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 50)

	c, err := New(100, 0)
	require.NoError(t, err)

	for _, ch := range c.Split(text) {
		assert.True(t, strings.HasPrefix(text[ch.StartChar:], ch.Content))
		assert.Equal(t, ch.Content, string([]rune(ch.Content)), "no split mid-rune")
	}
}
