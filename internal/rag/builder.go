// Package rag assembles cited context for a user question from the chunks
// most similar to it.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lisa-ai/rag/internal/metrics"
	"github.com/lisa-ai/rag/internal/vectorstore"
)

const (
	defaultTopK   = 5
	snippetLength = 150
)

// Source is one citation: the Nth context block maps to the Nth source, and
// that numbering is the join key between the context text the model cites
// and the citation cards the UI renders. Number is 1-based rank order.
type Source struct {
	Number       int
	DocumentID   uuid.UUID
	DocumentName string
	ChunkIndex   int
	Similarity   float64
	Snippet      string
}

// Context is the assembled retrieval result for one question. HasContext
// distinguishes "no relevant documents" (a normal outcome) from an error,
// which is returned separately.
type Context struct {
	ContextText string
	Sources     []Source
	HasContext  bool
}

// Embedder produces the query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs the similarity search.
type Searcher interface {
	Search(ctx context.Context, conversationID uuid.UUID, queryVector []float32, topK int) ([]vectorstore.SearchResult, error)
}

// Builder builds context on the chat turn's critical path: one query
// embedding plus one similarity search, no per-chunk round trips.
type Builder struct {
	embedder Embedder
	searcher Searcher
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewBuilder wires the builder.
func NewBuilder(embedder Embedder, searcher Searcher, m *metrics.Metrics, log zerolog.Logger) *Builder {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Builder{embedder: embedder, searcher: searcher, metrics: m, log: log}
}

// BuildContext retrieves the topK chunks most similar to the query within
// the conversation and formats them into numbered, attributable blocks.
// Errors propagate so the caller can degrade to an uncited answer; they
// are never coerced into an empty result.
func (b *Builder) BuildContext(ctx context.Context, query string, conversationID uuid.UUID, topK int) (*Context, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	start := time.Now()

	queryVector, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := b.searcher.Search(ctx, conversationID, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	b.metrics.SearchesTotal.Inc()
	b.metrics.SearchDuration.Observe(time.Since(start).Seconds())

	if len(results) == 0 {
		b.log.Debug().
			Stringer("conversation_id", conversationID).
			Msg("no relevant chunks for query")
		return &Context{HasContext: false}, nil
	}

	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))
	for i, result := range results {
		number := i + 1
		blocks = append(blocks, fmt.Sprintf("[Source %d: %s, section %d]\n%s\n",
			number, result.DocumentName, result.ChunkIndex+1, result.Content))
		sources = append(sources, Source{
			Number:       number,
			DocumentID:   result.DocumentID,
			DocumentName: result.DocumentName,
			ChunkIndex:   result.ChunkIndex,
			Similarity:   result.Similarity,
			Snippet:      snippet(result.Content),
		})
	}

	b.log.Debug().
		Stringer("conversation_id", conversationID).
		Int("sources", len(sources)).
		Float64("top_similarity", sources[0].Similarity).
		Msg("context built")

	return &Context{
		ContextText: strings.Join(blocks, "\n---\n\n"),
		Sources:     sources,
		HasContext:  true,
	}, nil
}

// snippet returns the first part of the content for citation display,
// cut on a rune boundary.
func snippet(content string) string {
	if len(content) <= snippetLength {
		return content
	}
	cut := snippetLength
	for cut > 0 && !isRuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
