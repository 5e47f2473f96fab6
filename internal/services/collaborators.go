package services

import (
	"context"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// OCRService is the external OCR collaborator: one call in, one raw
// response out. Decoding and validation happen in models.ParseOCRResponse.
type OCRService interface {
	Process(ctx context.Context, dataURL, model string) ([]byte, error)
}

// GenerationService is the external generative-language collaborator.
type GenerationService interface {
	Generate(ctx context.Context, systemPrompt, userPrompt, model string) (*models.GenerationResponse, error)
}

// ObjectStore is the key-addressed blob collaborator. Reads and writes are
// not retried; failures are fatal for the job that needed them.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Upload(ctx context.Context, bucket, key string, data []byte) error
	SignedUploadURL(bucket, key string) (string, error)
	SignedDownloadURL(bucket, key string) (string, error)
}

// TokenEstimator estimates the token count of text for the translator
// model. Estimates may be served remotely, hence the context.
type TokenEstimator func(ctx context.Context, text string) int
