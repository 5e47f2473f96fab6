package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/documenttranslationflow/internal/services"
)

var (
	apiInstance *services.APIFunction
	once        sync.Once
	initErr     error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables.")
	}

	functions.HTTP("TranslationAPI", handleRequest)
}

// main is required by the Go Functions Framework.
func main() {}

// handleRequest is the HTTP entry point; routing happens in the service.
func handleRequest(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for one-time initialization of clients.
	once.Do(func() {
		apiInstance, initErr = services.NewAPI(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	apiInstance.Handle(w, r)
}
