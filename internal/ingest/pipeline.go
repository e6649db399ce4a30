// Package ingest turns an uploaded document into stored, searchable chunks:
// extract -> chunk -> embed -> store, with the document's status field as
// the externally observable source of truth.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lisa-ai/rag/internal/chunker"
	"github.com/lisa-ai/rag/internal/db"
	"github.com/lisa-ai/rag/internal/extract"
	"github.com/lisa-ai/rag/internal/metrics"
)

// ErrEmptyDocument marks a document whose extraction produced no chunkable
// text. Zero chunks means nothing would ever be retrievable, so this is an
// ingestion failure, never a "completed, 0 chunks" success.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Job is one document to ingest. The document record must already exist.
type Job struct {
	DocumentID uuid.UUID
	FileName   string
	FileType   string
	Data       []byte
}

// DocumentStore records status transitions and metadata on the document.
type DocumentStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status db.Status, chunkCount *int, errDetail string) error
	UpdatePageCount(ctx context.Context, id uuid.UUID, pages int) error
}

// Embedder converts chunk texts into vectors, order-preserving.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists chunks with their vectors.
type ChunkStore interface {
	StoreChunks(ctx context.Context, documentID uuid.UUID, chunks []chunker.Chunk, vectors [][]float32) error
}

// Pipeline processes one document at a time. All collaborators are injected
// at construction so the pipeline never reaches for ambient global state.
type Pipeline struct {
	docs     DocumentStore
	splitter *chunker.Chunker
	embedder Embedder
	store    ChunkStore
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewPipeline wires the pipeline.
func NewPipeline(docs DocumentStore, splitter *chunker.Chunker, embedder Embedder, store ChunkStore, m *metrics.Metrics, log zerolog.Logger) *Pipeline {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Pipeline{
		docs:     docs,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		metrics:  m,
		log:      log,
	}
}

// Process runs the full ingestion for one document. Every step failure
// marks the document failed with the originating error recorded; there are
// no automatic retries — a failed document requires a fresh upload.
func (p *Pipeline) Process(ctx context.Context, job Job) error {
	start := time.Now()
	log := p.log.With().Stringer("document_id", job.DocumentID).Str("file", job.FileName).Logger()

	if err := p.docs.UpdateStatus(ctx, job.DocumentID, db.StatusProcessing, nil, ""); err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}

	result, err := extract.Extract(job.Data, job.FileType)
	if err != nil {
		return p.fail(ctx, job.DocumentID, log, err)
	}
	if result.SkippedPages > 0 {
		log.Warn().
			Int("skipped_pages", result.SkippedPages).
			Msg("some pages could not be read, extraction is partial")
	}

	// Page count is visible progress: record it as soon as extraction
	// knows it, before any chunk-level work.
	if result.PageCount != nil {
		if err := p.docs.UpdatePageCount(ctx, job.DocumentID, *result.PageCount); err != nil {
			return p.fail(ctx, job.DocumentID, log, err)
		}
	}

	if strings.TrimSpace(result.Text) == "" {
		return p.fail(ctx, job.DocumentID, log, ErrEmptyDocument)
	}

	chunks := p.splitter.Split(result.Text)
	if len(chunks) == 0 {
		return p.fail(ctx, job.DocumentID, log, ErrEmptyDocument)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return p.fail(ctx, job.DocumentID, log, err)
	}

	if err := p.store.StoreChunks(ctx, job.DocumentID, chunks, vectors); err != nil {
		return p.fail(ctx, job.DocumentID, log, err)
	}

	chunkCount := len(chunks)
	if err := p.docs.UpdateStatus(ctx, job.DocumentID, db.StatusCompleted, &chunkCount, ""); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}

	p.metrics.DocumentsProcessed.WithLabelValues(string(db.StatusCompleted)).Inc()
	p.metrics.ChunksStored.Add(float64(chunkCount))
	p.metrics.IngestDuration.Observe(time.Since(start).Seconds())

	log.Info().
		Int("chunks", chunkCount).
		Dur("took", time.Since(start)).
		Msg("document ingested")
	return nil
}

func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, log zerolog.Logger, cause error) error {
	if err := p.docs.UpdateStatus(ctx, id, db.StatusFailed, nil, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to record ingestion failure")
	}
	p.metrics.DocumentsProcessed.WithLabelValues(string(db.StatusFailed)).Inc()

	log.Error().Err(cause).Msg("document ingestion failed")
	return cause
}
