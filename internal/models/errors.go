package models

import "errors"

// Error taxonomy for the translation pipeline. Callers classify failures
// with errors.Is; the API layer maps them to HTTP status codes and the
// orchestrator writes terminal ones as an error status record.
var (
	// ErrInvalidInput covers bad filenames, missing extensions, and
	// missing required request fields. Maps to 400.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means no status record matched a query. Maps to 404.
	ErrNotFound = errors.New("not found")

	// ErrOCRParse means the OCR response was missing its model or a
	// page's markdown. Terminal for the job.
	ErrOCRParse = errors.New("malformed OCR response")

	// ErrGenerationParse means the generation response carried no usable
	// text content. Terminal for the job.
	ErrGenerationParse = errors.New("malformed generation response")

	// ErrStoreUnavailable means a status-store or object-store call
	// failed. Fatal for object reads/writes, swallowed for status writes.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEmptyContent means a page's HTML was blank when embedding.
	ErrEmptyContent = errors.New("empty page content")
)
