package services

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// minimalPDF assembles a valid empty-page PDF with a correct xref table,
// so the tests don't depend on binary fixtures.
func minimalPDF(t *testing.T, pageCount int) []byte {
	t.Helper()

	var kids []string
	for i := 0; i < pageCount; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	objs := []string{
		"1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n",
		fmt.Sprintf("2 0 obj\n<</Type/Pages/Kids[%s]/Count %d>>\nendobj\n", strings.Join(kids, " "), pageCount),
	}
	for i := 0; i < pageCount; i++ {
		objs = append(objs, fmt.Sprintf("%d 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>\nendobj\n", 3+i))
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objs))
	for _, obj := range objs {
		offsets = append(offsets, b.Len())
		b.WriteString(obj)
	}
	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xrefOffset)
	return []byte(b.String())
}

func resultPageCount(t *testing.T, data []byte) int {
	t.Helper()
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	require.NoError(t, err)
	return n
}

func TestPreparePDFPassesThroughSmallDocuments(t *testing.T) {
	out, err := preparePDF(minimalPDF(t, 1), 1024, 60)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, 1, resultPageCount(t, out))
}

func TestPreparePDFTrimsToPageLimit(t *testing.T) {
	out, err := preparePDF(minimalPDF(t, 3), 1024, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, resultPageCount(t, out))
}

func TestPreparePDFRejectsOversizedFiles(t *testing.T) {
	data := make([]byte, 3*1024)
	_, err := preparePDF(data, 2, 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "2 KB limit")
}

func TestPreparePDFRejectsNonPDFInput(t *testing.T) {
	_, err := preparePDF([]byte("definitely not a pdf"), 1024, 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestEncodeDataURL(t *testing.T) {
	assert.Equal(t, "data:application/pdf;base64,aGk=", encodeDataURL([]byte("hi"), "doc.pdf"))
	assert.Equal(t, "data:image/png;base64,aGk=", encodeDataURL([]byte("hi"), "scan.png"))
	assert.Equal(t, "data:application/octet-stream;base64,aGk=", encodeDataURL([]byte("hi"), "blob.weird"))
}
