package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"path"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/documenttranslationflow/internal/gcp"
	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// preparePDF validates and shrinks an uploaded PDF before OCR: reject
// anything over maxSizeKB, optimize with relaxed validation, and keep only
// the first maxPages pages.
func preparePDF(data []byte, maxSizeKB, maxPages int) ([]byte, error) {
	if sizeKB := len(data) / 1024; sizeKB > maxSizeKB {
		return nil, fmt.Errorf("%w: PDF is %d KB, exceeding the %d KB limit", models.ErrInvalidInput, sizeKB, maxSizeKB)
	}

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	var optimized bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &optimized, conf); err != nil {
		return nil, fmt.Errorf("%w: failed to validate/optimize PDF: %v", models.ErrInvalidInput, err)
	}

	pageCount, err := api.PageCount(bytes.NewReader(optimized.Bytes()), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count PDF pages: %v", models.ErrInvalidInput, err)
	}
	if pageCount <= maxPages {
		return optimized.Bytes(), nil
	}

	var trimmed bytes.Buffer
	pageRange := []string{fmt.Sprintf("1-%d", maxPages)}
	if err := api.Trim(bytes.NewReader(optimized.Bytes()), &trimmed, pageRange, conf); err != nil {
		return nil, fmt.Errorf("failed to trim PDF to %d pages: %w", maxPages, err)
	}
	return trimmed.Bytes(), nil
}

// encodeDataURL wraps raw bytes as a base64 data URL, with the MIME type
// inferred from the filename's extension.
func encodeDataURL(data []byte, filename string) string {
	mimeType := mime.TypeByExtension(path.Ext(filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// envInt reads an integer environment variable or returns the fallback.
func envInt(key string, fallback int) int {
	raw := gcp.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
