package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"

	"github.com/Lllllllleong/documenttranslationflow/internal/gcp"
	"github.com/Lllllllleong/documenttranslationflow/internal/keys"
	"github.com/Lllllllleong/documenttranslationflow/internal/models"
	"github.com/Lllllllleong/documenttranslationflow/internal/status"
)

// APIConfig holds configuration for the client-facing API.
type APIConfig struct {
	ProjectID        string
	UploadsBucket    string
	ResultsBucket    string
	StatusCollection string
}

// APIFunction serves the three client endpoints: upload-slot issuing,
// status polling, and result URL retrieval.
type APIFunction struct {
	objects     ObjectStore
	statusStore status.Store
	config      APIConfig
	now         func() time.Time
}

// loadAPIConfig loads and validates environment configuration.
func loadAPIConfig() (*APIConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	uploadsBucket := gcp.GetEnv("UPLOADS_BUCKET", "")
	resultsBucket := gcp.GetEnv("RESULTS_BUCKET", "")
	if uploadsBucket == "" || resultsBucket == "" {
		return nil, fmt.Errorf("UPLOADS_BUCKET and RESULTS_BUCKET environment variables must be set")
	}
	return &APIConfig{
		ProjectID:        projectID,
		UploadsBucket:    uploadsBucket,
		ResultsBucket:    resultsBucket,
		StatusCollection: gcp.GetEnv("STATUS_COLLECTION", "translation-status"),
	}, nil
}

// NewAPI builds the production API service from environment config.
func NewAPI(ctx context.Context) (*APIFunction, error) {
	config, err := loadAPIConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewAPIWithDeps(*config, gcp.NewObjectStore(storageClient),
		status.NewFirestoreStore(firestoreClient, config.StatusCollection)), nil
}

// NewAPIWithDeps wires the API from explicit collaborators.
func NewAPIWithDeps(config APIConfig, objects ObjectStore, statusStore status.Store) *APIFunction {
	return &APIFunction{
		objects:     objects,
		statusStore: statusStore,
		config:      config,
		now:         time.Now,
	}
}

// Handle routes the fixed API surface.
func (f *APIFunction) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	switch r.URL.Path {
	case "/v1/presigned-url":
		f.HandleUploadSlot(w, r)
	case "/v1/status":
		f.HandleStatus(w, r)
	case "/v1/result":
		f.HandleResult(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

// HandleUploadSlot issues a new job: a signed upload URL plus the result
// locations the client will later poll with.
func (f *APIFunction) HandleUploadSlot(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	targetLang := r.URL.Query().Get("target_language")
	if filename == "" || targetLang == "" {
		writeError(w, http.StatusBadRequest, "filename and target_language are required")
		return
	}
	sanitized := keys.Sanitize(filename)
	if sanitized == "" {
		slog.Warn("Filename sanitized to empty string.", "filename", filename)
		writeError(w, http.StatusBadRequest, "Invalid filename after sanitization")
		return
	}

	jobID := ulid.Make().String()
	datePrefix := keys.DatePrefix(f.now())

	resultKeys, err := keys.ResultKeysFor(jobID, sanitized, datePrefix)
	if err != nil {
		writeError(w, http.StatusBadRequest, "filename must have an extension")
		return
	}

	uploadKey := keys.UploadKey(jobID, targetLang, sanitized, datePrefix)
	uploadURL, err := f.objects.SignedUploadURL(f.config.UploadsBucket, uploadKey)
	if err != nil {
		slog.Error("Failed to sign upload URL.", "key", uploadKey, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate presigned upload URL")
		return
	}

	slog.Info("Issued upload slot.", "jobId", jobID, "filename", sanitized, "targetLang", targetLang)
	writeJSON(w, http.StatusOK, models.UploadSlotResponse{
		UploadURL:               uploadURL,
		MarkdownResultsLocation: resultKeys.Markdown,
		HTMLResultsLocation:     resultKeys.HTML,
	})
}

// HandleStatus reports a job's progress. The client identifies the job by
// echoing back a result location; the filename and job id are recovered
// from it. A terminal complete state answers with download URLs instead of
// the raw record.
func (f *APIFunction) HandleStatus(w http.ResponseWriter, r *http.Request) {
	datePrefix, jobID, baseName, ok := f.decodeLocationParam(w, r)
	if !ok {
		return
	}
	filename := keys.ReconstructFilename(baseName)
	slog.Info("Checking status.", "jobId", jobID, "filename", filename, "datePrefix", datePrefix)

	rec := f.statusStore.QueryLatest(r.Context(), filename, status.Query{JobID: jobID})
	if rec == nil {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if rec.Status.State != models.StateComplete {
		writeJSON(w, http.StatusOK, rec)
		return
	}

	urls, err := f.resultURLs(jobID, filename, datePrefix)
	if err != nil {
		slog.Error("Failed to sign result URLs.", "jobId", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate result URLs")
		return
	}
	writeJSON(w, http.StatusOK, urls)
}

// HandleResult returns download URLs for a result location without
// consulting job state.
func (f *APIFunction) HandleResult(w http.ResponseWriter, r *http.Request) {
	datePrefix, jobID, baseName, ok := f.decodeLocationParam(w, r)
	if !ok {
		return
	}
	filename := keys.ReconstructFilename(baseName)

	urls, err := f.resultURLs(jobID, filename, datePrefix)
	if err != nil {
		slog.Error("Failed to sign result URLs.", "jobId", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate result URLs")
		return
	}
	writeJSON(w, http.StatusOK, urls)
}

// decodeLocationParam extracts and decodes the result location query
// parameter, writing the 400 response itself when invalid.
func (f *APIFunction) decodeLocationParam(w http.ResponseWriter, r *http.Request) (datePrefix, jobID, baseName string, ok bool) {
	q := r.URL.Query()
	location := q.Get("html_results_location")
	if location == "" {
		location = q.Get("markdown_results_location")
	}
	if location == "" {
		writeError(w, http.StatusBadRequest, "A valid html_results_location or markdown_results_location is required")
		return "", "", "", false
	}
	datePrefix, jobID, baseName, ok = keys.DecodeResultKey(location)
	if !ok || datePrefix == "" || jobID == "" || baseName == "" {
		writeError(w, http.StatusBadRequest, "Invalid result location format")
		return "", "", "", false
	}
	return datePrefix, jobID, baseName, true
}

// resultURLs signs download URLs for both result artifacts of a job.
func (f *APIFunction) resultURLs(jobID, filename, datePrefix string) (models.ResultURLs, error) {
	resultKeys, err := keys.ResultKeysFor(jobID, filename, datePrefix)
	if err != nil {
		return models.ResultURLs{}, err
	}
	mdURL, err := f.objects.SignedDownloadURL(f.config.ResultsBucket, resultKeys.Markdown)
	if err != nil {
		return models.ResultURLs{}, err
	}
	htmlURL, err := f.objects.SignedDownloadURL(f.config.ResultsBucket, resultKeys.HTML)
	if err != nil {
		return models.ResultURLs{}, err
	}
	return models.ResultURLs{MarkdownResultsURL: mdURL, HTMLResultsURL: htmlURL}, nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response.", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, models.ErrorResponse{Error: message})
}
