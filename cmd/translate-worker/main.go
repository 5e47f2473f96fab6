package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
	"github.com/Lllllllleong/documenttranslationflow/internal/services"
)

var (
	translatorInstance *services.TranslatorFunction
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables.")
	}

	// Register the CloudEvent function. The framework routes the storage
	// event here.
	functions.CloudEvent("TranslateDocument", translateDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// translateDocument is the Cloud Function entry point for uploaded objects.
func translateDocument(ctx context.Context, e cloudevents.Event) error {
	// Use sync.Once for one-time initialization of clients.
	once.Do(func() {
		translatorInstance, initErr = services.NewTranslator(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	records, err := decodeRecords(e.Data())
	if err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("decode event: %w", err)
	}

	if err := translatorInstance.Process(ctx, records); err != nil {
		slog.Error("Translation processing failed", "error", err)
		return err
	}
	return nil
}

// decodeRecords accepts the two delivery shapes: a single storage object
// event, or a batched payload with a records list.
func decodeRecords(data []byte) ([]models.ObjectRef, error) {
	var batched models.TriggerPayload
	if err := json.Unmarshal(data, &batched); err == nil && len(batched.Records) > 0 {
		return batched.Records, nil
	}

	var single models.StorageObjectEvent
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	if single.Bucket == "" || single.Name == "" {
		return nil, fmt.Errorf("event carries neither records nor a storage object")
	}
	return []models.ObjectRef{{Bucket: single.Bucket, Key: single.Name}}, nil
}
