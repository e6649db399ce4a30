// Package extract converts raw document bytes into plain text.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
)

// ErrUnsupportedType is returned when the declared file type has no
// extractor. Unsupported input fails outright instead of attempting a
// best-effort extraction.
var ErrUnsupportedType = errors.New("unsupported file type")

// ExtractionError wraps the underlying cause of a failed extraction
// (corrupt file, unreadable container).
type ExtractionError struct {
	FileType string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.FileType, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Result holds extracted text and basic structural metadata.
// PageCount is nil for formats without an explicit page structure.
// SkippedPages counts pages that could not be read; the caller decides
// whether a truncated extraction is worth reporting.
type Result struct {
	Text         string
	PageCount    *int
	SkippedPages int
}

// Supported reports whether the declared type can be extracted.
func Supported(declaredType string) bool {
	switch normalizeType(declaredType) {
	case "pdf", "docx", "txt":
		return true
	}
	return false
}

// NormalizeType maps a declared MIME type or extension to the short file
// type stored on the document record ("pdf", "docx", "txt").
func NormalizeType(declaredType string) string {
	return normalizeType(declaredType)
}

func normalizeType(declaredType string) string {
	switch strings.ToLower(strings.TrimSpace(declaredType)) {
	case "pdf", "application/pdf":
		return "pdf"
	case "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "txt", "text/plain":
		return "txt"
	}
	return ""
}

// Extract routes to the extractor for the declared type. An empty
// extraction is a success with empty text; the ingestion pipeline decides
// whether that is fatal.
func Extract(data []byte, declaredType string) (*Result, error) {
	switch normalizeType(declaredType) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "txt":
		return extractTXT(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, declaredType)
	}
}

// extractPDF extracts per-page text via MuPDF. Page count is authoritative.
func extractPDF(data []byte) (*Result, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &ExtractionError{FileType: "pdf", Err: err}
	}
	defer doc.Close()

	pages := doc.NumPage()
	var textParts []string
	var pageErrs []error
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", i+1, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			textParts = append(textParts, text)
		}
	}

	text, err := assemblePages(textParts, pageErrs, pages)
	if err != nil {
		return nil, &ExtractionError{FileType: "pdf", Err: err}
	}
	return &Result{
		Text:         text,
		PageCount:    &pages,
		SkippedPages: len(pageErrs),
	}, nil
}

// assemblePages joins the readable page texts. Individual unreadable pages
// are tolerated and reported via SkippedPages; a document where every page
// fails to read is corrupt.
func assemblePages(texts []string, pageErrs []error, pages int) (string, error) {
	if pages > 0 && len(pageErrs) == pages {
		return "", fmt.Errorf("no readable pages: %w", errors.Join(pageErrs...))
	}
	return strings.Join(texts, "\n\n"), nil
}

// extractTXT treats the bytes as UTF-8, dropping invalid sequences.
// Plain text has no page structure, so PageCount stays nil.
func extractTXT(data []byte) (*Result, error) {
	return &Result{Text: sanitizeUTF8(string(data))}, nil
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
