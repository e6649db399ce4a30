package db

import (
	"context"
	"fmt"
)

// Migrate creates the pgvector extension, tables and indexes. All statements
// are idempotent, so running it on every startup is safe.
func (db *DB) Migrate(ctx context.Context, vectorDim int) error {
	if vectorDim < 1 {
		return fmt.Errorf("vector dimension must be positive, got %d", vectorDim)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			conversation_id UUID NOT NULL,
			file_name TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			processing_status TEXT NOT NULL DEFAULT 'pending',
			page_count INTEGER,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			error_detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS documents_conversation_idx
			ON documents (conversation_id) WHERE deleted_at IS NULL`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id),
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			char_count INTEGER NOT NULL,
			start_char INTEGER NOT NULL,
			end_char INTEGER NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (document_id, chunk_index)
		)`, vectorDim),

		`CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
			ON document_chunks
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
