// Package filestore keeps the uploaded bytes of a document on disk so a
// failed ingestion can be inspected and downloads can be served.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes uploaded files under a single data directory.
type Store struct {
	dir string
}

// New creates the data directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the file as <documentID>_<sanitized name> and returns the
// stored path.
func (s *Store) Save(data []byte, fileName string, documentID uuid.UUID) (string, error) {
	path := s.path(documentID, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

// Delete removes the stored file. Missing files are a no-op success so
// delete flows stay idempotent.
func (s *Store) Delete(documentID uuid.UUID, fileName string) error {
	err := os.Remove(s.path(documentID, fileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *Store) path(documentID uuid.UUID, fileName string) string {
	return filepath.Join(s.dir, documentID.String()+"_"+sanitizeName(fileName))
}

// sanitizeName strips path separators and other characters that have no
// business in a stored file name.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
