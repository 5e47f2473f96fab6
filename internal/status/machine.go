package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// stateOrder is the linear progression of a job. Error sits outside it and
// is reachable from every non-terminal state.
var stateOrder = []models.State{
	models.StateStarted,
	models.StateOCRProcessing,
	models.StateOCRComplete,
	models.StateTranslating,
	models.StateTranslationComplete,
	models.StateGeneratingHTML,
	models.StateHTMLComplete,
	models.StateComplete,
}

func stateRank(s models.State) int {
	for i, st := range stateOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Machine drives the status transitions of a single job. Each transition
// appends one record to the store. Append failures on non-terminal
// transitions are logged and swallowed so a flaky status store cannot fail
// a healthy job; the terminal error write is the one exception, since
// losing it would leave pollers waiting forever.
type Machine struct {
	store    Store
	filename string
	jobID    string
	current  models.State
	started  bool
	done     bool
}

// NewMachine returns a machine for one (filename, jobID) pair, positioned
// before the started state.
func NewMachine(store Store, filename, jobID string) *Machine {
	return &Machine{store: store, filename: filename, jobID: jobID}
}

// Current returns the last state the machine transitioned to.
func (m *Machine) Current() models.State { return m.current }

// Transition moves the job to state and appends the corresponding record.
// States must advance strictly along the linear order; use Fail for the
// error exit. Calling Transition on a terminal machine is a bug.
func (m *Machine) Transition(ctx context.Context, state models.State, message string) error {
	if m.done {
		return fmt.Errorf("job %s is terminal in state %q, cannot move to %q", m.jobID, m.current, state)
	}
	rank := stateRank(state)
	if rank < 0 {
		return fmt.Errorf("unknown state %q", state)
	}
	if m.started && rank <= stateRank(m.current) {
		return fmt.Errorf("state %q does not advance from %q", state, m.current)
	}

	m.current = state
	m.started = true
	if state.Terminal() {
		m.done = true
	}

	err := m.store.Append(ctx, m.filename, models.Status{
		JobID:    m.jobID,
		State:    state,
		Progress: state.Progress(),
		Message:  message,
	})
	if err != nil {
		slog.Error("Status write failed; continuing job.",
			"filename", m.filename, "jobId", m.jobID, "state", state, "error", err)
	}
	return nil
}

// Fail moves the job to the terminal error state, recording the triggering
// error's message at the progress of the state that failed. Unlike
// Transition, a store failure here is returned to the caller.
func (m *Machine) Fail(ctx context.Context, cause error) error {
	if m.done {
		return nil
	}
	progress := m.current.Progress()
	if !m.started {
		progress = 0
	}
	m.current = models.StateError
	m.done = true

	err := m.store.Append(ctx, m.filename, models.Status{
		JobID:    m.jobID,
		State:    models.StateError,
		Progress: progress,
		Message:  cause.Error(),
	})
	if err != nil {
		slog.Error("Failed to persist terminal error status.",
			"filename", m.filename, "jobId", m.jobID, "cause", cause, "error", err)
		return fmt.Errorf("%w: error status write failed: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}
