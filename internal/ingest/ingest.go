// Package ingest turns uploaded source files into raw document text.
//
// PDFs are validated with pdfcpu before text extraction; plain text files
// pass straight through. The extracted document is transient input for
// segmentation and is not persisted beyond the source file.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoExtractableText means the source contained no usable text, e.g. a
// scanned image-only PDF.
var ErrNoExtractableText = errors.New("no extractable text in source file")

// ErrUnsupportedFormat means the file extension is not handled.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Document is the extracted text of one uploaded work.
type Document struct {
	Text  string
	Pages int // 0 for non-paginated sources
}

// Extract reads a source file and returns its text. Supported formats are
// .pdf and .txt.
func Extract(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt":
		return extractText(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func extractPDF(path string) (*Document, error) {
	if err := api.ValidateFile(path, nil); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("count pdf pages: %w", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return nil, fmt.Errorf("read extracted text: %w", err)
	}

	text := sanitize(b.String())
	if text == "" {
		return nil, ErrNoExtractableText
	}
	return &Document{Text: text, Pages: pages}, nil
}

func extractText(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	text := sanitize(string(data))
	if text == "" {
		return nil, ErrNoExtractableText
	}
	return &Document{Text: text}, nil
}

// sanitize normalizes line endings and strips control characters that leak
// out of PDF extraction.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
