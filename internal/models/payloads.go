package models

// These structs define the JSON payloads exchanged with the trigger
// infrastructure and the client-facing API.

// ObjectRef identifies one uploaded object in the trigger payload.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// StorageObjectEvent is the data payload of a single storage CloudEvent.
type StorageObjectEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// TriggerPayload is the batched trigger shape: a list of uploaded objects
// delivered in one event.
type TriggerPayload struct {
	Records []ObjectRef `json:"records"`
}

// UploadSlotResponse is returned by /v1/presigned-url. The client uploads
// to UploadURL and later polls status by sending back one of the result
// locations verbatim.
type UploadSlotResponse struct {
	UploadURL               string `json:"upload_url"`
	MarkdownResultsLocation string `json:"markdown_results_location"`
	HTMLResultsLocation     string `json:"html_results_location"`
}

// ResultURLs carries time-limited download URLs for a completed job.
type ResultURLs struct {
	MarkdownResultsURL string `json:"markdown_results_url,omitempty"`
	HTMLResultsURL     string `json:"html_results_url,omitempty"`
}

// ErrorResponse is the API's uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GenerationResponse is the generation collaborator's normalized output:
// the textual contents of the model's reply, code fences already stripped.
type GenerationResponse struct {
	Contents []string `json:"contents"`
}
