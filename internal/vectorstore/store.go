// Package vectorstore persists chunks with embeddings in PostgreSQL +
// pgvector and performs conversation-scoped similarity search.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/lisa-ai/rag/internal/chunker"
	"github.com/lisa-ai/rag/internal/db"
)

// UnavailableError reports a storage/connectivity failure. It is a distinct
// type so callers can tell an unreachable store apart from an empty search
// result; the two must never be conflated.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("vector store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// DimensionError reports a vector whose dimensionality disagrees with the
// store's configured one. Storing such a vector is a hard failure.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store expects %d, got %d", e.Want, e.Got)
}

// SearchResult is an ephemeral projection produced per query. Similarity is
// cosine similarity normalized into [0,1]. Results are ordered by
// similarity descending, ties broken by chunk ordinal ascending.
type SearchResult struct {
	ChunkID      uuid.UUID
	DocumentID   uuid.UUID
	DocumentName string
	Content      string
	ChunkIndex   int
	Similarity   float64
}

// Store reads and writes document chunks with their embeddings.
type Store struct {
	db   *db.DB
	dims int
	log  zerolog.Logger
}

// New creates a Store bound to the given connection pool and vector
// dimensionality.
func New(database *db.DB, dims int, log zerolog.Logger) *Store {
	return &Store{db: database, dims: dims, log: log}
}

// Dimensions returns the store's configured vector dimensionality.
func (s *Store) Dimensions() int {
	return s.dims
}

// StoreChunks persists each chunk+vector pair for a document. Inserts are
// keyed by (document_id, chunk_index), so re-storing after a partial
// failure overwrites rather than duplicates. The caller must treat any
// error as ingestion failure; partial storage is never a success.
func (s *Store) StoreChunks(ctx context.Context, documentID uuid.UUID, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	for _, vec := range vectors {
		if len(vec) != s.dims {
			return &DimensionError{Want: s.dims, Got: len(vec)}
		}
	}

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(
			`INSERT INTO document_chunks (id, document_id, chunk_index, content, char_count, start_char, end_char, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (document_id, chunk_index) DO UPDATE SET
				content = EXCLUDED.content,
				char_count = EXCLUDED.char_count,
				start_char = EXCLUDED.start_char,
				end_char = EXCLUDED.end_char,
				embedding = EXCLUDED.embedding`,
			uuid.New(), documentID, chunk.Index, chunk.Content,
			chunk.CharCount, chunk.StartChar, chunk.EndChar,
			pgvector.NewVector(vectors[i]),
		)
	}

	br := s.db.Pool().SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return &UnavailableError{Op: fmt.Sprintf("store chunk %d", i), Err: err}
		}
	}

	s.log.Debug().
		Stringer("document_id", documentID).
		Int("chunks", len(chunks)).
		Msg("stored chunks")
	return nil
}

// Search returns the topK most similar chunks belonging to completed,
// non-deleted documents of the given conversation. Restricting to completed
// documents keeps rows left behind by a partially failed ingestion out of
// results. Chunks from other conversations are never returned, even for
// the same user. topK <= 0 deterministically yields an empty result.
func (s *Store) Search(ctx context.Context, conversationID uuid.UUID, queryVector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(queryVector) != s.dims {
		return nil, &DimensionError{Want: s.dims, Got: len(queryVector)}
	}

	rows, err := s.db.Pool().Query(ctx,
		`SELECT c.id, c.document_id, d.file_name, c.content, c.chunk_index,
			1 - (c.embedding <=> $1) AS similarity
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.conversation_id = $2 AND d.deleted_at IS NULL
			AND d.processing_status = 'completed'
		 ORDER BY c.embedding <=> $1, c.chunk_index
		 LIMIT $3`,
		pgvector.NewVector(queryVector), conversationID, topK,
	)
	if err != nil {
		return nil, &UnavailableError{Op: "search", Err: err}
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentName, &r.Content, &r.ChunkIndex, &r.Similarity); err != nil {
			return nil, &UnavailableError{Op: "search scan", Err: err}
		}
		r.Similarity = clampSimilarity(r.Similarity)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Op: "search", Err: err}
	}

	return results, nil
}

// DeleteChunks removes all chunks for a document. Deleting a document with
// no chunks is a no-op success.
func (s *Store) DeleteChunks(ctx context.Context, documentID uuid.UUID) error {
	tag, err := s.db.Pool().Exec(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return &UnavailableError{Op: "delete chunks", Err: err}
	}

	s.log.Debug().
		Stringer("document_id", documentID).
		Int64("deleted", tag.RowsAffected()).
		Msg("deleted chunks")
	return nil
}

// clampSimilarity maps 1 - cosine_distance into [0,1]. Cosine distance
// ranges over [0,2], so opposing vectors would otherwise score negative.
func clampSimilarity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
