package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
)

// Documents shorter than this after trimming are treated as having no
// extractable text. Scanned or image-only PDFs usually decode to a handful
// of stray characters rather than nothing at all.
const minTextRunes = 50

var (
	// ErrUnsupportedFormat is returned for file extensions the extractor does not handle.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyDocument is returned when a file decodes to no meaningful text.
	ErrEmptyDocument = errors.New("no extractable text")
	// ErrUnreadable is returned when a supported file cannot be opened or decoded.
	ErrUnreadable = errors.New("unreadable document")
)

// Extractor converts resume and job description files into plain text.
// It never modifies source files.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the plain text content of the file at path. Dispatch is by
// extension; unsupported extensions fail before the file is touched.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf", ".docx":
	default:
		return "", fmt.Errorf("%s: %w: %q", filepath.Base(path), ErrUnsupportedFormat, ext)
	}

	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrUnreadable, err)
	}

	text := strings.TrimSpace(res.Body)
	if utf8.RuneCountInString(text) < minTextRunes {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyDocument)
	}

	return text, nil
}

// IsSupported reports whether the extractor handles the file's extension.
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx":
		return true
	default:
		return false
	}
}
