// Package inspect reads a picked local file into an upload, detecting its content type and page count.
package inspect

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/ledongthuc/pdf"
)

// PDFContentType is the only content type the backend accepts.
const PDFContentType = "application/pdf"

// Load reads the file at path. The content type is sniffed from the bytes, not taken from the
// extension. For PDFs the page count is read when the document parses; a PDF that does not parse
// still loads with LocalPages 0 and is left for the backend to judge.
func Load(path string, pageRange *models.PageRange) (*models.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return FromBytes(filepath.Base(path), data, pageRange), nil
}

// FromBytes builds an upload from in-memory content.
func FromBytes(name string, data []byte, pageRange *models.PageRange) *models.Upload {
	upload := &models.Upload{
		Name:        name,
		ContentType: DetectContentType(data),
		Data:        data,
		PageRange:   pageRange,
	}
	if upload.ContentType == PDFContentType {
		if n, err := PageCount(data); err == nil {
			upload.LocalPages = n
		}
	}
	return upload
}

// DetectContentType returns the media type of data without parameters.
func DetectContentType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}

// PageCount returns the number of pages in the PDF content.
func PageCount(content []byte) (n int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("open PDF: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("open PDF: %w", err)
	}
	return r.NumPage(), nil
}
