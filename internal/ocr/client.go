// Package ocr is the client for the external OCR service. It speaks the
// vendor's REST API directly and hands the raw response back for parsing
// into the intermediate representation.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.mistral.ai/v1/ocr"

// Client calls the OCR REST API.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates an OCR client. endpoint may be empty to use the
// vendor's default.
func NewClient(apiKey, endpoint string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OCR API key must be provided")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// request is the vendor's OCR request shape. The document is sent inline as
// a data URL, either as an image or a PDF.
type request struct {
	Model              string   `json:"model"`
	Document           document `json:"document"`
	IncludeImageBase64 bool     `json:"include_image_base64"`
}

type document struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

// Process runs OCR over a base64 data URL and returns the raw response
// body. PDFs (data:application/pdf) are sent as document_url, everything
// else as image_url. Parsing and validation belong to the caller.
func (c *Client) Process(ctx context.Context, dataURL, model string) ([]byte, error) {
	doc := document{Type: "image_url", ImageURL: dataURL}
	if strings.HasPrefix(dataURL, "data:application/pdf") {
		doc = document{Type: "document_url", DocumentURL: dataURL}
	}
	body, err := json.Marshal(request{
		Model:              model,
		Document:           doc,
		IncludeImageBase64: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR service returned %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
