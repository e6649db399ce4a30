// Package chunker splits extracted text into overlapping segments sized
// for the embedding model.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk is one contiguous slice of a document's text. Index is the 0-based
// ordinal that defines citation numbering; StartChar/EndChar locate the
// content in the original text.
type Chunk struct {
	Index     int
	Content   string
	StartChar int
	EndChar   int
	CharCount int
}

// defaultSeparators orders boundaries from most to least semantic:
// paragraphs, lines, sentence punctuation, clause punctuation, words,
// and finally a hard character cut.
var defaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// Chunker splits text into chunks of at most chunkSize characters with
// chunkOverlap characters carried between consecutive chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a Chunker. Overlap must be strictly less than chunk size.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be non-negative and less than chunk size (size %d, overlap %d)", chunkSize, chunkOverlap)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}, nil
}

// Split chunks the text. Empty or whitespace-only input yields zero chunks
// and no error; the caller decides whether that is fatal.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := c.split(text, 0, c.separators)
	return c.merge(pieces)
}

// piece is a separator-bounded fragment no longer than chunkSize,
// annotated with its offset in the original text. Separators stay attached
// to the fragment they terminate, so concatenating pieces reproduces the
// original text exactly.
type piece struct {
	start int
	text  string
}

func (c *Chunker) split(text string, start int, separators []string) []piece {
	sep := ""
	rest := []string{}
	for i, s := range separators {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return hardCut(text, start, c.chunkSize)
	}

	var pieces []piece
	offset := start
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if len(part) <= c.chunkSize {
			pieces = append(pieces, piece{start: offset, text: part})
		} else {
			pieces = append(pieces, c.split(part, offset, rest)...)
		}
		offset += len(part)
	}
	return pieces
}

// hardCut slices text into runs of at most size bytes on rune boundaries.
// Last-resort splitting when no semantic boundary exists within the window.
func hardCut(text string, start int, size int) []piece {
	var pieces []piece
	runStart := 0
	for i, r := range text {
		if i+utf8.RuneLen(r)-runStart > size && i > runStart {
			// close the run at the rune boundary before the limit
			pieces = append(pieces, piece{start: start + runStart, text: text[runStart:i]})
			runStart = i
		}
	}
	if runStart < len(text) {
		pieces = append(pieces, piece{start: start + runStart, text: text[runStart:]})
	}
	return pieces
}

// merge packs pieces into chunks up to chunkSize, carrying a suffix of the
// previous window forward as overlap. Pieces in a window are always
// contiguous in the original text, so each chunk is an exact substring.
func (c *Chunker) merge(pieces []piece) []Chunk {
	var chunks []Chunk
	var window []piece
	windowLen := 0

	flush := func() {
		if windowLen == 0 {
			return
		}
		var sb strings.Builder
		sb.Grow(windowLen)
		for _, p := range window {
			sb.WriteString(p.text)
		}
		content := sb.String()
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Content:   content,
			StartChar: window[0].start,
			EndChar:   window[0].start + len(content),
			CharCount: len(content),
		})
	}

	for _, p := range pieces {
		if windowLen+len(p.text) > c.chunkSize && windowLen > 0 {
			flush()
			// keep at most chunkOverlap characters, and always leave room
			// for the incoming piece
			for windowLen > c.chunkOverlap ||
				(windowLen+len(p.text) > c.chunkSize && windowLen > 0) {
				windowLen -= len(window[0].text)
				window = window[1:]
				if len(window) == 0 {
					break
				}
			}
		}
		window = append(window, p)
		windowLen += len(p.text)
	}
	flush()

	return chunks
}
