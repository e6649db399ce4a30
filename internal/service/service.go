// Package service is the facade the transport layers (HTTP handlers, CLI)
// call: upload validation, document lifecycle, and question answering glue.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lisa-ai/rag/internal/db"
	"github.com/lisa-ai/rag/internal/extract"
	"github.com/lisa-ai/rag/internal/filestore"
	"github.com/lisa-ai/rag/internal/ingest"
	"github.com/lisa-ai/rag/internal/rag"
	"github.com/lisa-ai/rag/internal/vectorstore"
)

// DefaultMaxFileSize caps uploads at 50MB.
const DefaultMaxFileSize = 50 * 1024 * 1024

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("file size exceeds limit")

// ErrEmptyUpload is returned when an upload carries no bytes.
var ErrEmptyUpload = errors.New("no file content provided")

// Service wires the RAG core together behind one API.
type Service struct {
	docs        *db.DB
	files       *filestore.Store
	queue       *ingest.Queue
	builder     *rag.Builder
	chunks      *vectorstore.Store
	maxFileSize int64
	log         zerolog.Logger
}

// New creates the service. maxFileSize <= 0 selects the default.
func New(docs *db.DB, files *filestore.Store, queue *ingest.Queue, builder *rag.Builder, chunks *vectorstore.Store, maxFileSize int64, log zerolog.Logger) *Service {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Service{
		docs:        docs,
		files:       files,
		queue:       queue,
		builder:     builder,
		chunks:      chunks,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

// UploadRequest describes one upload from the transport layer.
type UploadRequest struct {
	UserID         string
	ConversationID uuid.UUID
	FileName       string
	DeclaredType   string
	Data           []byte
}

// ValidateUpload checks size and declared type before any record exists.
func ValidateUpload(req UploadRequest, maxFileSize int64) error {
	if len(req.Data) == 0 {
		return ErrEmptyUpload
	}
	if int64(len(req.Data)) > maxFileSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(req.Data), maxFileSize)
	}
	if !extract.Supported(req.DeclaredType) {
		return fmt.Errorf("%w: %s", extract.ErrUnsupportedType, req.DeclaredType)
	}
	return nil
}

// UploadDocument validates the upload, creates the document record, saves
// the raw bytes, and hands ingestion to the queue. It returns as soon as
// the job is accepted; callers observe progress by polling the document's
// status.
func (s *Service) UploadDocument(ctx context.Context, req UploadRequest) (*db.Document, error) {
	if err := ValidateUpload(req, s.maxFileSize); err != nil {
		return nil, err
	}

	doc := &db.Document{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		FileName:       req.FileName,
		FileType:       extract.NormalizeType(req.DeclaredType),
		FileSize:       int64(len(req.Data)),
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	path, err := s.files.Save(req.Data, req.FileName, doc.ID)
	if err != nil {
		s.failUpload(ctx, doc.ID, err)
		return nil, err
	}
	if err := s.docs.UpdateFilePath(ctx, doc.ID, path); err != nil {
		s.failUpload(ctx, doc.ID, err)
		return nil, err
	}
	doc.FilePath = path

	job := ingest.Job{
		DocumentID: doc.ID,
		FileName:   req.FileName,
		FileType:   req.DeclaredType,
		Data:       req.Data,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.failUpload(ctx, doc.ID, err)
		return nil, err
	}

	s.log.Info().
		Stringer("document_id", doc.ID).
		Str("file", req.FileName).
		Str("user", req.UserID).
		Msg("document accepted for processing")
	return doc, nil
}

func (s *Service) failUpload(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.docs.UpdateStatus(ctx, id, db.StatusFailed, nil, cause.Error()); err != nil {
		s.log.Error().Err(err).Stringer("document_id", id).Msg("failed to record upload failure")
	}
}

// DocumentStatus returns the document for status polling, scoped to its
// owner.
func (s *Service) DocumentStatus(ctx context.Context, userID string, documentID uuid.UUID) (*db.Document, error) {
	return s.docs.GetDocument(ctx, documentID, userID)
}

// ListDocuments returns the conversation's non-deleted documents.
func (s *Service) ListDocuments(ctx context.Context, conversationID uuid.UUID) ([]*db.Document, error) {
	return s.docs.ListDocuments(ctx, conversationID)
}

// DeleteDocument removes a document the user owns. Chunk and file cleanup
// are best-effort: the soft delete must succeed even if they fail, because
// the document record is the user-visible source of truth. Deleted
// documents drop out of search immediately via the deleted filter.
func (s *Service) DeleteDocument(ctx context.Context, userID string, documentID uuid.UUID) error {
	doc, err := s.docs.GetDocument(ctx, documentID, userID)
	if err != nil {
		return err
	}

	if err := s.chunks.DeleteChunks(ctx, doc.ID); err != nil {
		s.log.Warn().Err(err).Stringer("document_id", doc.ID).Msg("chunk cleanup failed, continuing with delete")
	}
	if err := s.files.Delete(doc.ID, doc.FileName); err != nil {
		s.log.Warn().Err(err).Stringer("document_id", doc.ID).Msg("file cleanup failed, continuing with delete")
	}

	return s.docs.SoftDelete(ctx, doc.ID)
}

// BuildContext assembles cited retrieval context for a question in a
// conversation.
func (s *Service) BuildContext(ctx context.Context, query string, conversationID uuid.UUID, topK int) (*rag.Context, error) {
	return s.builder.BuildContext(ctx, query, conversationID, topK)
}
