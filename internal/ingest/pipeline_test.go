package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisa-ai/rag/internal/chunker"
	"github.com/lisa-ai/rag/internal/db"
	"github.com/lisa-ai/rag/internal/extract"
	"github.com/lisa-ai/rag/internal/logger"
)

type statusChange struct {
	status     db.Status
	chunkCount *int
	errDetail  string
}

type fakeDocStore struct {
	mu         sync.Mutex
	changes    map[uuid.UUID][]statusChange
	pageCounts map[uuid.UUID]int
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		changes:    make(map[uuid.UUID][]statusChange),
		pageCounts: make(map[uuid.UUID]int),
	}
}

func (f *fakeDocStore) UpdateStatus(_ context.Context, id uuid.UUID, status db.Status, chunkCount *int, errDetail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes[id] = append(f.changes[id], statusChange{status, chunkCount, errDetail})
	return nil
}

func (f *fakeDocStore) UpdatePageCount(_ context.Context, id uuid.UUID, pages int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCounts[id] = pages
	return nil
}

func (f *fakeDocStore) history(id uuid.UUID) []statusChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changes[id]
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, 8)
	}
	return vectors, nil
}

type fakeChunkStore struct {
	err    error
	stored map[uuid.UUID][]chunker.Chunk
	mu     sync.Mutex
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{stored: make(map[uuid.UUID][]chunker.Chunk)}
}

func (f *fakeChunkStore) StoreChunks(_ context.Context, documentID uuid.UUID, chunks []chunker.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if len(chunks) != len(vectors) {
		return errors.New("count mismatch")
	}
	f.stored[documentID] = chunks
	return nil
}

func newTestPipeline(t *testing.T, docs DocumentStore, emb Embedder, store ChunkStore) *Pipeline {
	t.Helper()
	splitter, err := chunker.New(100, 20)
	require.NoError(t, err)
	return NewPipeline(docs, splitter, emb, store, nil, logger.Nop())
}

func TestProcess_PlainTextDocumentCompletes(t *testing.T) {
	docs := newFakeDocStore()
	emb := &fakeEmbedder{}
	store := newFakeChunkStore()
	p := newTestPipeline(t, docs, emb, store)

	text := "First paragraph of the report.\n\nSecond paragraph with details.\n\nThird paragraph, conclusions."
	job := Job{DocumentID: uuid.New(), FileName: "notes.txt", FileType: "text/plain", Data: []byte(text)}

	require.NoError(t, p.Process(context.Background(), job))

	history := docs.history(job.DocumentID)
	require.Len(t, history, 2)
	assert.Equal(t, db.StatusProcessing, history[0].status)
	assert.Equal(t, db.StatusCompleted, history[1].status)
	require.NotNil(t, history[1].chunkCount)
	assert.GreaterOrEqual(t, *history[1].chunkCount, 1)

	assert.Len(t, store.stored[job.DocumentID], *history[1].chunkCount)
	assert.NotContains(t, docs.pageCounts, job.DocumentID, "plain text has no page count")
}

func TestProcess_UnsupportedTypeFailsImmediately(t *testing.T) {
	docs := newFakeDocStore()
	emb := &fakeEmbedder{}
	store := newFakeChunkStore()
	p := newTestPipeline(t, docs, emb, store)

	job := Job{DocumentID: uuid.New(), FileName: "archive.zip", FileType: "application/zip", Data: []byte("PK")}

	err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrUnsupportedType)

	history := docs.history(job.DocumentID)
	require.Len(t, history, 2)
	assert.Equal(t, db.StatusFailed, history[1].status)
	assert.Contains(t, history[1].errDetail, "unsupported file type")

	assert.Zero(t, emb.calls, "no embedding for unsupported files")
	assert.Empty(t, store.stored, "no chunks created")
}

func TestProcess_EmptyDocumentFails(t *testing.T) {
	docs := newFakeDocStore()
	p := newTestPipeline(t, docs, &fakeEmbedder{}, newFakeChunkStore())

	for _, data := range [][]byte{nil, []byte("   \n\n  ")} {
		job := Job{DocumentID: uuid.New(), FileName: "empty.txt", FileType: "txt", Data: data}

		err := p.Process(context.Background(), job)
		assert.ErrorIs(t, err, ErrEmptyDocument)

		history := docs.history(job.DocumentID)
		require.Len(t, history, 2)
		assert.Equal(t, db.StatusFailed, history[1].status)
		assert.Equal(t, ErrEmptyDocument.Error(), history[1].errDetail)
	}
}

func TestProcess_EmbeddingFailureAbortsBeforeStore(t *testing.T) {
	docs := newFakeDocStore()
	emb := &fakeEmbedder{err: errors.New("provider down")}
	store := newFakeChunkStore()
	p := newTestPipeline(t, docs, emb, store)

	job := Job{DocumentID: uuid.New(), FileName: "doc.txt", FileType: "txt", Data: []byte("Some document content here.")}

	err := p.Process(context.Background(), job)
	require.Error(t, err)

	history := docs.history(job.DocumentID)
	assert.Equal(t, db.StatusFailed, history[len(history)-1].status)
	assert.Empty(t, store.stored, "no partial store after embedding failure")
}

func TestProcess_StorageFailureFailsDocument(t *testing.T) {
	docs := newFakeDocStore()
	store := newFakeChunkStore()
	store.err = errors.New("connection reset")
	p := newTestPipeline(t, docs, &fakeEmbedder{}, store)

	job := Job{DocumentID: uuid.New(), FileName: "doc.txt", FileType: "txt", Data: []byte("Some document content here.")}

	err := p.Process(context.Background(), job)
	require.Error(t, err)

	history := docs.history(job.DocumentID)
	last := history[len(history)-1]
	assert.Equal(t, db.StatusFailed, last.status)
	assert.Contains(t, last.errDetail, "connection reset")
}

func TestQueue_ProcessesEnqueuedJobs(t *testing.T) {
	docs := newFakeDocStore()
	store := newFakeChunkStore()
	p := newTestPipeline(t, docs, &fakeEmbedder{}, store)
	q := NewQueue(p, 2, 8, logger.Nop())

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		err := q.Enqueue(Job{DocumentID: ids[i], FileName: "f.txt", FileType: "txt", Data: []byte("Document body text.")})
		require.NoError(t, err)
	}

	q.Close()

	for _, id := range ids {
		history := docs.history(id)
		require.NotEmpty(t, history, "job %s never ran", id)
		assert.Equal(t, db.StatusCompleted, history[len(history)-1].status)
	}
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	p := newTestPipeline(t, newFakeDocStore(), &fakeEmbedder{}, newFakeChunkStore())
	q := NewQueue(p, 1, 1, logger.Nop())
	q.Close()

	err := q.Enqueue(Job{DocumentID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
