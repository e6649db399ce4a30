package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a document does not exist, is soft-deleted,
// or belongs to a different user. The three cases are deliberately not
// distinguished to callers.
var ErrNotFound = errors.New("document not found or access denied")

const documentColumns = `id, user_id, conversation_id, file_name, file_type, file_size,
	 file_path, processing_status, page_count, chunk_count, error_detail,
	 created_at, updated_at, deleted_at`

// CreateDocument creates a new document record in status pending.
func (db *DB) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Status = StatusPending

	err := db.pool.QueryRow(ctx,
		`INSERT INTO documents (id, user_id, conversation_id, file_name, file_type, file_size, file_path, processing_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		doc.ID, doc.UserID, doc.ConversationID, doc.FileName, doc.FileType,
		doc.FileSize, doc.FilePath, doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument retrieves a non-deleted document owned by the given user.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID, userID string) (*Document, error) {
	var doc Document
	err := db.pool.QueryRow(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		id, userID,
	).Scan(
		&doc.ID, &doc.UserID, &doc.ConversationID, &doc.FileName, &doc.FileType,
		&doc.FileSize, &doc.FilePath, &doc.Status, &doc.PageCount, &doc.ChunkCount,
		&doc.ErrorDetail, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns all non-deleted documents in a conversation,
// newest first.
func (db *DB) ListDocuments(ctx context.Context, conversationID uuid.UUID) ([]*Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE conversation_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(
			&doc.ID, &doc.UserID, &doc.ConversationID, &doc.FileName, &doc.FileType,
			&doc.FileSize, &doc.FilePath, &doc.Status, &doc.PageCount, &doc.ChunkCount,
			&doc.ErrorDetail, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// UpdateStatus transitions the document's processing status. chunkCount is
// recorded when non-nil; errDetail is recorded when non-empty (a failure).
func (db *DB) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, chunkCount *int, errDetail string) error {
	var err error
	switch {
	case chunkCount != nil:
		_, err = db.pool.Exec(ctx,
			`UPDATE documents SET processing_status = $1, chunk_count = $2, updated_at = NOW() WHERE id = $3`,
			status, *chunkCount, id)
	case errDetail != "":
		_, err = db.pool.Exec(ctx,
			`UPDATE documents SET processing_status = $1, error_detail = $2, updated_at = NOW() WHERE id = $3`,
			status, errDetail, id)
	default:
		_, err = db.pool.Exec(ctx,
			`UPDATE documents SET processing_status = $1, updated_at = NOW() WHERE id = $2`,
			status, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return nil
}

// UpdatePageCount records the page count as soon as extraction knows it,
// independent of chunk-level progress.
func (db *DB) UpdatePageCount(ctx context.Context, id uuid.UUID, pages int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE documents SET page_count = $1, updated_at = NOW() WHERE id = $2`,
		pages, id)
	if err != nil {
		return fmt.Errorf("failed to update page count: %w", err)
	}
	return nil
}

// UpdateFilePath records where the uploaded bytes were stored.
func (db *DB) UpdateFilePath(ctx context.Context, id uuid.UUID, path string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE documents SET file_path = $1, updated_at = NOW() WHERE id = $2`,
		path, id)
	if err != nil {
		return fmt.Errorf("failed to update file path: %w", err)
	}
	return nil
}

// SoftDelete marks a document deleted. The record remains the user-visible
// source of truth, so this succeeds regardless of chunk cleanup.
func (db *DB) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE documents SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
