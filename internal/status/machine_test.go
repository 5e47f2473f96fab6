package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// failingStore rejects every append.
type failingStore struct{}

func (failingStore) Append(context.Context, string, models.Status) error {
	return errors.New("store down")
}

func (failingStore) QueryLatest(context.Context, string, Query) *models.StatusRecord {
	return nil
}

func TestMachineWalksLinearStates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewMachine(store, "a.pdf", "01J")

	steps := []struct {
		state    models.State
		progress int
	}{
		{models.StateStarted, 0},
		{models.StateOCRProcessing, 10},
		{models.StateOCRComplete, 30},
		{models.StateTranslating, 50},
		{models.StateTranslationComplete, 70},
		{models.StateGeneratingHTML, 80},
		{models.StateHTMLComplete, 95},
		{models.StateComplete, 100},
	}
	for _, s := range steps {
		require.NoError(t, m.Transition(ctx, s.state, string(s.state)))
	}

	recs := store.Records("a.pdf")
	require.Len(t, recs, len(steps))
	for i, s := range steps {
		assert.Equal(t, s.state, recs[i].Status.State)
		assert.Equal(t, s.progress, recs[i].Status.Progress)
		assert.Equal(t, "01J", recs[i].Status.JobID)
	}
}

func TestMachineAllowsSkippingStates(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(NewMemoryStore(), "a.pdf", "01J")

	require.NoError(t, m.Transition(ctx, models.StateStarted, ""))
	// Single-image jobs skip the batching-related stages.
	require.NoError(t, m.Transition(ctx, models.StateTranslating, ""))
	require.NoError(t, m.Transition(ctx, models.StateComplete, ""))
}

func TestMachineRejectsBackwardTransition(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(NewMemoryStore(), "a.pdf", "01J")

	require.NoError(t, m.Transition(ctx, models.StateTranslating, ""))
	assert.Error(t, m.Transition(ctx, models.StateStarted, ""))
	assert.Error(t, m.Transition(ctx, models.StateTranslating, ""))
}

func TestMachineCompleteIsTerminal(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(NewMemoryStore(), "a.pdf", "01J")

	require.NoError(t, m.Transition(ctx, models.StateComplete, "done"))
	assert.Error(t, m.Transition(ctx, models.StateStarted, ""))
}

func TestMachineFailRecordsCauseAtCurrentProgress(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewMachine(store, "a.pdf", "01J")

	require.NoError(t, m.Transition(ctx, models.StateOCRProcessing, ""))
	require.NoError(t, m.Fail(ctx, errors.New("ocr exploded")))

	recs := store.Records("a.pdf")
	require.Len(t, recs, 2)
	last := recs[1].Status
	assert.Equal(t, models.StateError, last.State)
	assert.Equal(t, 10, last.Progress)
	assert.Equal(t, "ocr exploded", last.Message)

	// Error is terminal: nothing further is attempted or written.
	assert.Error(t, m.Transition(ctx, models.StateOCRComplete, ""))
	require.NoError(t, m.Fail(ctx, errors.New("again")))
	assert.Len(t, store.Records("a.pdf"), 2)
}

func TestMachineSwallowsWriteFailuresOnProgress(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(failingStore{}, "a.pdf", "01J")

	// Non-terminal transitions succeed even when the store is down.
	require.NoError(t, m.Transition(ctx, models.StateStarted, ""))
	require.NoError(t, m.Transition(ctx, models.StateOCRProcessing, ""))
	assert.Equal(t, models.StateOCRProcessing, m.Current())
}

func TestMachineFailPropagatesWriteFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(failingStore{}, "a.pdf", "01J")

	require.NoError(t, m.Transition(ctx, models.StateStarted, ""))
	err := m.Fail(ctx, errors.New("boom"))
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
