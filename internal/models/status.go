package models

import "time"

// State names the stages a translation job moves through. The progression
// is linear; Error is reachable from every non-terminal state and, like
// Complete, is terminal.
type State string

const (
	StateStarted             State = "started"
	StateOCRProcessing       State = "ocr_processing"
	StateOCRComplete         State = "ocr_complete"
	StateTranslating         State = "translating"
	StateTranslationComplete State = "translation_complete"
	StateGeneratingHTML      State = "generating_html"
	StateHTMLComplete        State = "html_complete"
	StateComplete            State = "complete"
	StateError               State = "error"
)

// stateProgress maps each state to the percentage reported to pollers.
var stateProgress = map[State]int{
	StateStarted:             0,
	StateOCRProcessing:       10,
	StateOCRComplete:         30,
	StateTranslating:         50,
	StateTranslationComplete: 70,
	StateGeneratingHTML:      80,
	StateHTMLComplete:        95,
	StateComplete:            100,
}

// Progress returns the percentage associated with s, or -1 for states
// without a fixed value (Error inherits the progress of the failed stage).
func (s State) Progress() int {
	if p, ok := stateProgress[s]; ok {
		return p
	}
	return -1
}

// Terminal reports whether no further transitions are attempted from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// Status is the job-scoped payload embedded in every status record. JobID
// disambiguates multiple jobs for the same filename.
type Status struct {
	JobID    string         `json:"jobId" firestore:"jobId"`
	State    State          `json:"state" firestore:"state"`
	Progress int            `json:"progress" firestore:"progress"`
	Message  string         `json:"message,omitempty" firestore:"message,omitempty"`
	Extra    map[string]any `json:"extra,omitempty" firestore:"extra,omitempty"`
}

// StatusRecord is one append-only entry in the status store. Filename is
// the partition key, CreatedAt the sort key; records are never mutated,
// only newer ones appended.
type StatusRecord struct {
	Filename  string    `json:"filename" firestore:"filename"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	Status    Status    `json:"status" firestore:"status"`
}
