package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisa-ai/rag/internal/logger"
	"github.com/lisa-ai/rag/internal/vectorstore"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 8), nil
}

type fakeSearcher struct {
	results  []vectorstore.SearchResult
	err      error
	lastTopK int
	lastConv uuid.UUID
}

func (f *fakeSearcher) Search(_ context.Context, conversationID uuid.UUID, _ []float32, topK int) ([]vectorstore.SearchResult, error) {
	f.lastConv = conversationID
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.results) {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func result(docName string, chunkIndex int, similarity float64, content string) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ChunkID:      uuid.New(),
		DocumentID:   uuid.New(),
		DocumentName: docName,
		Content:      content,
		ChunkIndex:   chunkIndex,
		Similarity:   similarity,
	}
}

func TestBuildContext_NoResultsIsNormalOutcome(t *testing.T) {
	b := NewBuilder(&fakeEmbedder{}, &fakeSearcher{}, nil, logger.Nop())

	rc, err := b.BuildContext(context.Background(), "anything?", uuid.New(), 5)
	require.NoError(t, err, "empty conversation is not an error")
	assert.False(t, rc.HasContext)
	assert.Empty(t, rc.ContextText)
	assert.Empty(t, rc.Sources)
}

func TestBuildContext_NumberingFollowsRankOrder(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.SearchResult{
		result("handbook.pdf", 4, 0.91, "Vacation policy details."),
		result("handbook.pdf", 1, 0.84, "Sick leave rules."),
		result("contract.docx", 0, 0.52, "Termination clauses."),
	}}
	b := NewBuilder(&fakeEmbedder{}, searcher, nil, logger.Nop())

	rc, err := b.BuildContext(context.Background(), "how much vacation?", uuid.New(), 5)
	require.NoError(t, err)
	assert.True(t, rc.HasContext)

	require.Len(t, rc.Sources, 3)
	for i, src := range rc.Sources {
		assert.Equal(t, i+1, src.Number)
	}

	assert.Contains(t, rc.ContextText, "[Source 1: handbook.pdf, section 5]\nVacation policy details.")
	assert.Contains(t, rc.ContextText, "[Source 2: handbook.pdf, section 2]\nSick leave rules.")
	assert.Contains(t, rc.ContextText, "[Source 3: contract.docx, section 1]\nTermination clauses.")

	blocks := strings.Split(rc.ContextText, "\n---\n\n")
	require.Len(t, blocks, 3)
	for i, block := range blocks {
		assert.True(t, strings.HasPrefix(block, fmt.Sprintf("[Source %d:", i+1)),
			"block order must match source numbering")
	}
}

func TestBuildContext_SourceCarriesMetadata(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.SearchResult{
		result("spec.pdf", 2, 0.77, "Relevant passage."),
	}}
	b := NewBuilder(&fakeEmbedder{}, searcher, nil, logger.Nop())

	rc, err := b.BuildContext(context.Background(), "q", uuid.New(), 5)
	require.NoError(t, err)

	src := rc.Sources[0]
	assert.Equal(t, "spec.pdf", src.DocumentName)
	assert.Equal(t, 2, src.ChunkIndex)
	assert.Equal(t, 0.77, src.Similarity)
	assert.Equal(t, "Relevant passage.", src.Snippet)
}

func TestBuildContext_SnippetTruncatedAt150(t *testing.T) {
	long := strings.Repeat("abcde ", 100)
	searcher := &fakeSearcher{results: []vectorstore.SearchResult{
		result("big.txt", 0, 0.9, long),
	}}
	b := NewBuilder(&fakeEmbedder{}, searcher, nil, logger.Nop())

	rc, err := b.BuildContext(context.Background(), "q", uuid.New(), 5)
	require.NoError(t, err)

	snip := rc.Sources[0].Snippet
	assert.True(t, strings.HasSuffix(snip, "..."))
	assert.Len(t, snip, 153)
	assert.Equal(t, long[:150], snip[:150])
}

func TestBuildContext_DefaultTopK(t *testing.T) {
	searcher := &fakeSearcher{}
	b := NewBuilder(&fakeEmbedder{}, searcher, nil, logger.Nop())

	_, err := b.BuildContext(context.Background(), "q", uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, searcher.lastTopK)
}

func TestBuildContext_TwoChunksWithLargerTopK(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.SearchResult{
		result("doc.txt", 0, 0.8, "First chunk."),
		result("doc.txt", 1, 0.6, "Second chunk."),
	}}
	b := NewBuilder(&fakeEmbedder{}, searcher, nil, logger.Nop())

	rc, err := b.BuildContext(context.Background(), "q", uuid.New(), 5)
	require.NoError(t, err)
	assert.True(t, rc.HasContext)
	require.Len(t, rc.Sources, 2)
	assert.Contains(t, rc.ContextText, "[Source 1:")
	assert.Contains(t, rc.ContextText, "[Source 2:")
}

func TestBuildContext_EmbeddingErrorPropagates(t *testing.T) {
	b := NewBuilder(&fakeEmbedder{err: errors.New("provider down")}, &fakeSearcher{}, nil, logger.Nop())

	_, err := b.BuildContext(context.Background(), "q", uuid.New(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestBuildContext_SearchErrorNotCoercedToEmpty(t *testing.T) {
	storeErr := &vectorstore.UnavailableError{Op: "search", Err: errors.New("dial tcp: refused")}
	b := NewBuilder(&fakeEmbedder{}, &fakeSearcher{err: storeErr}, nil, logger.Nop())

	rc, err := b.BuildContext(context.Background(), "q", uuid.New(), 5)
	require.Error(t, err, "store outage must be distinguishable from no matches")
	assert.Nil(t, rc)

	var unavailable *vectorstore.UnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestSystemPrompt(t *testing.T) {
	withContext := SystemPrompt("[Source 1: doc.pdf, section 1]\ncontent\n")
	assert.Contains(t, withContext, "[Source 1: doc.pdf, section 1]")
	assert.Contains(t, withContext, "cite your sources")

	without := SystemPrompt("")
	assert.Contains(t, without, "upload documents first")
}

func TestParseCitations(t *testing.T) {
	tests := []struct {
		response string
		want     []int
	}{
		{"Per the policy [Source 1].", []int{1}},
		{"See [Sources 1, 3] and also [Source 2].", []int{1, 2, 3}},
		{"Repeated [Source 2] then [Source 2] again.", []int{2}},
		{"No citations here.", []int{}},
		{"[Sources 10, 2]", []int{2, 10}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCitations(tt.response), tt.response)
	}
}
