package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("", "")
	require.Error(t, err)

	c, err := NewClient("key", "")
	require.NoError(t, err)
	assert.Equal(t, defaultEndpoint, c.endpoint)
}

func TestProcessSendsImageRequest(t *testing.T) {
	var got request
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"model":"mistral-ocr-latest","pages":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient("secret", srv.URL)
	require.NoError(t, err)

	raw, err := c.Process(context.Background(), "data:image/png;base64,aGk=", "mistral-ocr-latest")
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"mistral-ocr-latest","pages":[]}`, string(raw))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "mistral-ocr-latest", got.Model)
	assert.True(t, got.IncludeImageBase64)
	assert.Equal(t, "image_url", got.Document.Type)
	assert.Equal(t, "data:image/png;base64,aGk=", got.Document.ImageURL)
	assert.Empty(t, got.Document.DocumentURL)
}

func TestProcessSendsPDFAsDocumentURL(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient("secret", srv.URL)
	require.NoError(t, err)

	_, err = c.Process(context.Background(), "data:application/pdf;base64,aGk=", "mistral-ocr-latest")
	require.NoError(t, err)
	assert.Equal(t, "document_url", got.Document.Type)
	assert.Equal(t, "data:application/pdf;base64,aGk=", got.Document.DocumentURL)
	assert.Empty(t, got.Document.ImageURL)
}

func TestProcessSurfacesServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient("secret", srv.URL)
	require.NoError(t, err)

	_, err = c.Process(context.Background(), "data:image/png;base64,aGk=", "mistral-ocr-latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}
