package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// signedURLTTL is how long presigned upload and download links stay valid.
const signedURLTTL = 10 * time.Minute

// ObjectStore is the key-addressed blob adapter used by the orchestrator
// and the API. Downloads and uploads are not retried; a failure is fatal
// for the job that needed them.
type ObjectStore struct {
	client *storage.Client
}

// NewObjectStore wraps an existing storage client.
func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

// Download reads the full object into memory.
func (s *ObjectStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Upload writes data to the object, creating it only if absent. The
// precondition failure for an existing object may surface on the copy or
// only when the writer is closed; both count as an idempotent skip.
func (s *ObjectStore) Upload(ctx context.Context, bucket, key string, data []byte) error {
	writer := s.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		if isPreconditionFailure(err) {
			log.Printf("SKIPPING: Object %s already exists.", key)
			return nil
		}
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailure(err) {
			log.Printf("SKIPPING: Object %s already exists.", key)
			return nil
		}
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// isPreconditionFailure reports whether err is a GCS 412, the response to a
// DoesNotExist condition on an object that already exists.
func isPreconditionFailure(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// SignedUploadURL mints a time-limited PUT URL for a client upload.
func (s *ObjectStore) SignedUploadURL(bucket, key string) (string, error) {
	url, err := s.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: "application/octet-stream",
		Expires:     time.Now().Add(signedURLTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign upload URL for gs://%s/%s: %w", bucket, key, err)
	}
	return url, nil
}

// SignedDownloadURL mints a time-limited GET URL for a result artifact.
func (s *ObjectStore) SignedDownloadURL(bucket, key string) (string, error) {
	url, err := s.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(signedURLTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign download URL for gs://%s/%s: %w", bucket, key, err)
	}
	return url, nil
}
