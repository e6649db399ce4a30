package db

import (
	"time"

	"github.com/google/uuid"
)

// Status is the processing state of an uploaded document.
// Valid transitions: pending -> processing -> completed | failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document represents one uploaded file. A document belongs to exactly one
// user and one conversation; it is never shared across either.
type Document struct {
	ID             uuid.UUID
	UserID         string
	ConversationID uuid.UUID
	FileName       string
	FileType       string
	FileSize       int64
	FilePath       string
	Status         Status
	PageCount      *int
	ChunkCount     int
	ErrorDetail    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}
