package port

import (
	"context"
	"errors"
	"io"

	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// ErrArtifactNotFound is returned when a payload reference does not resolve to content
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore defines storage operations for generated invoice documents
type ArtifactStore interface {
	Save(ctx context.Context, ref string, content []byte) error
	Resolve(ctx context.Context, ref string) ([]byte, error)
	URL(ref string) string
}

// DocumentInspector validates rendered documents
type DocumentInspector interface {
	PageCount(content []byte) (int, error)
}

// DeliveryReportWriter renders the delivery state of invoices for operators
type DeliveryReportWriter interface {
	Write(w io.Writer, invoices []*entity.Invoice) error
}
