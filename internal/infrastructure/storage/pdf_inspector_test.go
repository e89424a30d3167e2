package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onePagePDF is a minimal document; mupdf rebuilds the missing xref table
const onePagePDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>
endobj
trailer
<< /Root 1 0 R >>
%%EOF
`

func TestPDFInspector_PageCount(t *testing.T) {
	inspector := NewPDFInspector()

	t.Run("valid document", func(t *testing.T) {
		pages, err := inspector.PageCount([]byte(onePagePDF))
		require.NoError(t, err)
		assert.Equal(t, 1, pages)
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := inspector.PageCount(nil)
		assert.Error(t, err)
	})

	t.Run("not a document", func(t *testing.T) {
		_, err := inspector.PageCount([]byte("definitely not a pdf"))
		assert.Error(t, err)
	})
}
