package storage

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/garyjia/invoice-notifier/internal/application/port"
)

// PDFInspector opens documents with mupdf to check they are renderable
type PDFInspector struct{}

// NewPDFInspector creates a new PDFInspector
func NewPDFInspector() *PDFInspector {
	return &PDFInspector{}
}

// PageCount returns the number of pages in the document
func (p *PDFInspector) PageCount(content []byte) (int, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("empty document")
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return 0, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

var _ port.DocumentInspector = (*PDFInspector)(nil)
