package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/documenttranslationflow/internal/batch"
	"github.com/Lllllllleong/documenttranslationflow/internal/embed"
	"github.com/Lllllllleong/documenttranslationflow/internal/gcp"
	"github.com/Lllllllleong/documenttranslationflow/internal/keys"
	"github.com/Lllllllleong/documenttranslationflow/internal/models"
	"github.com/Lllllllleong/documenttranslationflow/internal/ocr"
	"github.com/Lllllllleong/documenttranslationflow/internal/status"
)

// TranslatorConfig holds all configuration for the translation worker.
type TranslatorConfig struct {
	ProjectID        string
	VertexAIRegion   string
	UploadsBucket    string
	ResultsBucket    string
	StatusCollection string
	OCRModel         string
	TranslatorModel  string
	MaxTotalTokens   int
	MaxTokensPerPage int
	PDFMaxSizeKB     int
	PDFMaxPages      int
}

// TranslatorFunction orchestrates document translation jobs: one job per
// uploaded object, OCR then per-batch translation then image embedding,
// with every stage reported to the status store.
type TranslatorFunction struct {
	objects     ObjectStore
	statusStore status.Store
	ocrService  OCRService
	generation  GenerationService
	estimate    TokenEstimator
	config      TranslatorConfig
}

// loadTranslatorConfig loads and validates environment configuration.
func loadTranslatorConfig() (*TranslatorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	uploadsBucket := gcp.GetEnv("UPLOADS_BUCKET", "")
	resultsBucket := gcp.GetEnv("RESULTS_BUCKET", "")
	if uploadsBucket == "" || resultsBucket == "" {
		return nil, fmt.Errorf("UPLOADS_BUCKET and RESULTS_BUCKET environment variables must be set")
	}

	return &TranslatorConfig{
		ProjectID:        projectID,
		VertexAIRegion:   gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		UploadsBucket:    uploadsBucket,
		ResultsBucket:    resultsBucket,
		StatusCollection: gcp.GetEnv("STATUS_COLLECTION", "translation-status"),
		OCRModel:         gcp.GetEnv("OCR_MODEL", "mistral-ocr-latest"),
		TranslatorModel:  gcp.GetEnv("TRANSLATOR_MODEL", "gemini-1.5-pro"),
		MaxTotalTokens:   envInt("MAX_TOTAL_TOKENS", 100_000),
		MaxTokensPerPage: envInt("MAX_TOKENS_PER_PAGE", 8_000),
		PDFMaxSizeKB:     envInt("PDF_MAX_SIZE_KB", 20_480),
		PDFMaxPages:      envInt("PDF_MAX_PAGES", 60),
	}, nil
}

// NewTranslator builds the production worker from environment config.
func NewTranslator(ctx context.Context) (*TranslatorFunction, error) {
	config, err := loadTranslatorConfig()
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
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	ocrClient, err := ocr.NewClient(gcp.GetEnv("OCR_API_KEY", ""), gcp.GetEnv("OCR_ENDPOINT", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR client: %w", err)
	}

	estimator := func(ctx context.Context, text string) int {
		return vertexClient.EstimateTokens(ctx, config.TranslatorModel, text)
	}
	return NewTranslatorWithDeps(*config, gcp.NewObjectStore(storageClient),
		status.NewFirestoreStore(firestoreClient, config.StatusCollection),
		ocrClient, vertexClient, estimator), nil
}

// NewTranslatorWithDeps wires the worker from explicit collaborators.
func NewTranslatorWithDeps(config TranslatorConfig, objects ObjectStore, statusStore status.Store,
	ocrService OCRService, generation GenerationService, estimate TokenEstimator) *TranslatorFunction {
	return &TranslatorFunction{
		objects:     objects,
		statusStore: statusStore,
		ocrService:  ocrService,
		generation:  generation,
		estimate:    estimate,
		config:      config,
	}
}

// job is one parsed, processable trigger record.
type job struct {
	Bucket     string
	Key        string
	DatePrefix string
	JobID      string
	TargetLang string
	Filename   string
}

// Process handles one trigger delivery. Records that don't belong to the
// uploads bucket or don't parse as upload keys are skipped. Remaining jobs
// run concurrently; one job's failure never aborts its siblings, and the
// first failure is reported after all jobs finish.
func (f *TranslatorFunction) Process(ctx context.Context, records []models.ObjectRef) error {
	executionID := uuid.NewString()
	logCtx := slog.With("executionId", executionID)

	jobs := f.filterRecords(logCtx, records)
	if len(jobs) == 0 {
		return fmt.Errorf("%w: no processable records in trigger payload", models.ErrInvalidInput)
	}
	logCtx.Info("Starting translation jobs.", "jobCount", len(jobs))

	// Plain errgroup: Wait collects the first error but every job runs to
	// its own terminal state.
	var eg errgroup.Group
	for _, j := range jobs {
		eg.Go(func() error {
			if err := f.processJob(ctx, logCtx, j); err != nil {
				return fmt.Errorf("job %s (%s): %w", j.JobID, j.Filename, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (f *TranslatorFunction) filterRecords(logCtx *slog.Logger, records []models.ObjectRef) []job {
	var jobs []job
	for _, rec := range records {
		if rec.Bucket != f.config.UploadsBucket {
			logCtx.Warn("Skipping record from unexpected bucket.", "bucket", rec.Bucket, "key", rec.Key)
			continue
		}
		j, ok := parseUploadKey(rec.Key)
		if !ok {
			logCtx.Warn("Skipping non-matching object key.", "key", rec.Key)
			continue
		}
		j.Bucket = rec.Bucket
		jobs = append(jobs, j)
	}
	return jobs
}

// parseUploadKey splits uploads/{date_prefix}/{job_id}/{target_lang}/{name}.
func parseUploadKey(key string) (job, bool) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 5 || parts[0] != "uploads" {
		return job{}, false
	}
	j := job{
		Key:        key,
		DatePrefix: parts[1],
		JobID:      parts[2],
		TargetLang: parts[3],
		Filename:   parts[4],
	}
	if j.DatePrefix == "" || j.JobID == "" || j.TargetLang == "" || j.Filename == "" {
		return job{}, false
	}
	return j, true
}

// processJob runs one document through the full pipeline, recording each
// stage and writing a terminal error status on any failure.
func (f *TranslatorFunction) processJob(ctx context.Context, logCtx *slog.Logger, j job) error {
	logCtx = logCtx.With("jobId", j.JobID, "filename", j.Filename, "targetLang", j.TargetLang)
	logCtx.Info("Processing job.")

	m := status.NewMachine(f.statusStore, j.Filename, j.JobID)
	if err := m.Transition(ctx, models.StateStarted, "Starting translation pipeline"); err != nil {
		return err
	}

	data, err := f.objects.Download(ctx, j.Bucket, j.Key)
	if err != nil {
		return f.handleError(ctx, logCtx, m, "failed to download source object",
			fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
	}

	isPDF := strings.EqualFold(path.Ext(j.Filename), ".pdf")
	if isPDF {
		if data, err = preparePDF(data, f.config.PDFMaxSizeKB, f.config.PDFMaxPages); err != nil {
			return f.handleError(ctx, logCtx, m, "failed to prepare PDF", err)
		}
	}

	if err := m.Transition(ctx, models.StateOCRProcessing, "Performing OCR"); err != nil {
		return err
	}
	raw, err := f.ocrService.Process(ctx, encodeDataURL(data, j.Filename), f.config.OCRModel)
	if err != nil {
		return f.handleError(ctx, logCtx, m, "OCR call failed", err)
	}
	doc, err := models.ParseOCRResponse(raw)
	if err != nil {
		return f.handleError(ctx, logCtx, m, "failed to parse OCR response", err)
	}
	if len(doc.Pages) == 0 {
		return f.handleError(ctx, logCtx, m, "OCR returned no pages",
			fmt.Errorf("%w: document has no pages", models.ErrOCRParse))
	}
	if err := m.Transition(ctx, models.StateOCRComplete, "OCR complete"); err != nil {
		return err
	}

	if len(doc.Pages) > 1 {
		counter := func(text string) int { return f.estimate(ctx, text) }
		doc, err = batch.Combine(doc, counter, f.config.MaxTotalTokens, f.config.MaxTokensPerPage)
		if err != nil {
			return f.handleError(ctx, logCtx, m, "failed to batch pages", err)
		}
		logCtx.Info("Pages batched for translation.", "batchCount", len(doc.Pages))
	}

	if err := m.Transition(ctx, models.StateTranslating, "Translating and generating HTML"); err != nil {
		return err
	}
	if err := f.translatePages(ctx, logCtx, doc, j.TargetLang); err != nil {
		return f.handleError(ctx, logCtx, m, "translation failed", err)
	}
	if err := m.Transition(ctx, models.StateTranslationComplete, "Translation complete"); err != nil {
		return err
	}

	if err := m.Transition(ctx, models.StateGeneratingHTML, "Embedding images and combining pages"); err != nil {
		return err
	}
	if err := embed.InHTML(doc); err != nil {
		return f.handleError(ctx, logCtx, m, "failed to embed images in HTML", err)
	}
	embed.InMarkdown(doc)
	finalHTML := embed.CombineHTML(doc)
	finalMarkdown := combineMarkdown(doc)
	if err := m.Transition(ctx, models.StateHTMLComplete, "HTML generation complete"); err != nil {
		return err
	}

	resultKeys, err := keys.ResultKeysFor(j.JobID, j.Filename, j.DatePrefix)
	if err != nil {
		return f.handleError(ctx, logCtx, m, "failed to derive result keys", err)
	}
	if err := f.objects.Upload(ctx, f.config.ResultsBucket, resultKeys.Markdown, []byte(finalMarkdown)); err != nil {
		return f.handleError(ctx, logCtx, m, "failed to persist markdown result",
			fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
	}
	if err := f.objects.Upload(ctx, f.config.ResultsBucket, resultKeys.HTML, []byte(finalHTML)); err != nil {
		return f.handleError(ctx, logCtx, m, "failed to persist HTML result",
			fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
	}

	if err := m.Transition(ctx, models.StateComplete, "Pipeline complete"); err != nil {
		return err
	}
	logCtx.Info("Job complete.", "markdownKey", resultKeys.Markdown, "htmlKey", resultKeys.HTML)
	return nil
}

// translatePages fans the generation calls out, one per batch. All calls
// run concurrently; embedding waits for every batch.
func (f *TranslatorFunction) translatePages(ctx context.Context, logCtx *slog.Logger, doc *models.Document, targetLang string) error {
	eg, gctx := errgroup.WithContext(ctx)
	for i := range doc.Pages {
		page := &doc.Pages[i]
		eg.Go(func() error {
			systemPrompt := gcp.TranslateSystemPromptFor(targetLang, page.ImageDimensionsList())
			userPrompt := gcp.TranslateUserPromptFor(page.Text.Markdown, targetLang)

			resp, err := f.generation.Generate(gctx, systemPrompt, userPrompt, f.config.TranslatorModel)
			if err != nil {
				return fmt.Errorf("page %d: %w", page.Index, err)
			}
			if resp == nil || len(resp.Contents) == 0 || strings.TrimSpace(resp.Contents[0]) == "" {
				return fmt.Errorf("page %d: %w: empty contents", page.Index, models.ErrGenerationParse)
			}
			page.Text.HTML = gcp.StripCodeFences(resp.Contents[0])
			logCtx.Info("Page translated.", "pageIndex", page.Index)
			return nil
		})
	}
	return eg.Wait()
}

// combineMarkdown joins the markdown of every batch in order.
func combineMarkdown(doc *models.Document) string {
	parts := make([]string, 0, len(doc.Pages))
	for i := range doc.Pages {
		parts = append(parts, doc.Pages[i].Text.Markdown)
	}
	return strings.Join(parts, "\n\n")
}

// handleError writes the terminal error status for the job, logs, and
// returns the original error wrapped with its stage message.
func (f *TranslatorFunction) handleError(ctx context.Context, logCtx *slog.Logger, m *status.Machine, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	if err := m.Fail(ctx, fmt.Errorf("%s: %v", message, originalErr)); err != nil {
		logCtx.Error("CRITICAL: failed to persist error status after a processing error.", "statusError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
