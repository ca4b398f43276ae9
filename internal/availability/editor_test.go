package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

type fakeStore struct {
	mu          sync.Mutex
	slots       []contract.Slot
	listErr     error
	createErr   error
	deleteErr   error
	created     [][]contract.SlotInput
	deleted     []int64
	listCalls   int
	createCalls int
	// when set, CreateSlots signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeStore) ListSlots(context.Context, int64) ([]contract.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.slots, f.listErr
}

func (f *fakeStore) CreateSlots(_ context.Context, _ int64, in []contract.SlotInput) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, in)
	return nil
}

func (f *fakeStore) DeleteSlot(_ context.Context, _ int64, slotID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, slotID)
	return nil
}

type countingConfirm struct {
	answer bool
	calls  int
}

func (c *countingConfirm) Confirm(context.Context, string) (bool, error) {
	c.calls++
	return c.answer, nil
}

func d(day int) time.Time {
	return time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

func openEditor(t *testing.T, store *fakeStore, confirm Confirmer) *Editor {
	t.Helper()
	e := NewEditor(EditorConfig{Store: store, Confirm: confirm, Location: time.UTC})
	require.NoError(t, e.Open(context.Background(), 7))
	require.Equal(t, Editing, e.State())
	return e
}

func TestEditorOpenMarksExistingSlots(t *testing.T) {
	store := &fakeStore{slots: []contract.Slot{
		{ID: 1, Start: at(3, 9, 0), End: at(3, 9, 30), Available: true},
		{ID: 2, Start: at(3, 10, 0), End: at(3, 10, 30), Available: false},
	}}
	e := openEditor(t, store, nil)

	assert.Equal(t, ExistingOpen, e.SlotState(d(3), "09:00"))
	assert.Equal(t, ExistingBooked, e.SlotState(d(3), "10:00"))
	assert.Equal(t, Unselected, e.SlotState(d(3), "11:00"))
}

func TestEditorOpenFailureCloses(t *testing.T) {
	store := &fakeStore{listErr: errors.New("boom")}
	e := NewEditor(EditorConfig{Store: store, Location: time.UTC})
	err := e.Open(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, Closed, e.State())
}

func TestToggleTwiceReturnsToUnselected(t *testing.T) {
	e := openEditor(t, &fakeStore{}, nil)
	ctx := context.Background()

	out, err := e.Toggle(ctx, d(3), "09:00")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSelected, out)
	assert.Equal(t, SelectedPending, e.SlotState(d(3), "09:00"))

	out, err = e.Toggle(ctx, d(3), "09:00")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeselected, out)
	assert.Equal(t, Unselected, e.SlotState(d(3), "09:00"))
}

func TestToggleBookedSlotIsLocked(t *testing.T) {
	store := &fakeStore{slots: []contract.Slot{{ID: 9, Start: at(3, 9, 0), End: at(3, 9, 30), Available: false}}}
	confirm := &countingConfirm{answer: true}
	e := openEditor(t, store, confirm)

	out, err := e.Toggle(context.Background(), d(3), "09:00")
	assert.ErrorIs(t, err, ErrSlotLocked)
	assert.Equal(t, OutcomeKept, out)
	assert.Equal(t, ExistingBooked, e.SlotState(d(3), "09:00"))
	assert.Zero(t, confirm.calls)
	assert.Empty(t, store.deleted)
}

func TestToggleOpenSlotRemovesAfterConfirmation(t *testing.T) {
	store := &fakeStore{slots: []contract.Slot{{ID: 4, Start: at(3, 9, 0), End: at(3, 9, 30), Available: true}}}
	confirm := &countingConfirm{answer: true}
	e := openEditor(t, store, confirm)

	out, err := e.Toggle(context.Background(), d(3), "09:00")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, out)
	assert.Equal(t, []int64{4}, store.deleted)
	assert.Equal(t, Unselected, e.SlotState(d(3), "09:00"))
	assert.Equal(t, 1, confirm.calls)
}

func TestToggleOpenSlotDeclinedKeepsSlot(t *testing.T) {
	store := &fakeStore{slots: []contract.Slot{{ID: 4, Start: at(3, 9, 0), End: at(3, 9, 30), Available: true}}}
	e := openEditor(t, store, &countingConfirm{answer: false})

	out, err := e.Toggle(context.Background(), d(3), "09:00")
	require.NoError(t, err)
	assert.Equal(t, OutcomeKept, out)
	assert.Empty(t, store.deleted)
	assert.Equal(t, ExistingOpen, e.SlotState(d(3), "09:00"))
}

func TestToggleOpenSlotRemoteFailureKeepsSlot(t *testing.T) {
	store := &fakeStore{
		slots:     []contract.Slot{{ID: 4, Start: at(3, 9, 0), End: at(3, 9, 30), Available: true}},
		deleteErr: errors.New("500"),
	}
	e := openEditor(t, store, AlwaysConfirm)

	_, err := e.Toggle(context.Background(), d(3), "09:00")
	require.Error(t, err)
	assert.Equal(t, ExistingOpen, e.SlotState(d(3), "09:00"))
}

func TestToggleRequiresEditing(t *testing.T) {
	e := NewEditor(EditorConfig{Store: &fakeStore{}, Location: time.UTC})
	_, err := e.Toggle(context.Background(), d(3), "09:00")
	assert.ErrorIs(t, err, ErrNotEditing)

	e = openEditor(t, &fakeStore{}, nil)
	_, err = e.Toggle(context.Background(), d(3), "9am")
	assert.Error(t, err)
}

func TestCopyPasteScenario(t *testing.T) {
	e := openEditor(t, &fakeStore{}, nil)
	ctx := context.Background()

	_, err := e.Toggle(ctx, d(3), "09:00")
	require.NoError(t, err)
	_, err = e.Toggle(ctx, d(3), "09:30")
	require.NoError(t, err)
	require.NoError(t, e.CopyDay(d(3)))

	added, err := e.PasteDay(d(4))
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, SelectedPending, e.SlotState(d(4), "09:00"))
	assert.Equal(t, SelectedPending, e.SlotState(d(4), "09:30"))
	_, ok := e.Clipboard()
	assert.False(t, ok)
	assert.Equal(t, []string{
		"2024-06-03|09:00", "2024-06-03|09:30",
		"2024-06-04|09:00", "2024-06-04|09:30",
	}, e.Pending())
}

func TestPasteWithEmptyClipboardIsNoop(t *testing.T) {
	e := openEditor(t, &fakeStore{}, nil)
	_, err := e.Toggle(context.Background(), d(3), "09:00")
	require.NoError(t, err)

	added, err := e.PasteDay(d(4))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, []string{"2024-06-03|09:00"}, e.Pending())
}

func TestPasteLeavesExistingSlotsUntouched(t *testing.T) {
	store := &fakeStore{slots: []contract.Slot{
		{ID: 1, Start: at(4, 9, 0), End: at(4, 9, 30), Available: false},
		{ID: 2, Start: at(4, 9, 30), End: at(4, 10, 0), Available: true},
	}}
	e := openEditor(t, store, nil)
	ctx := context.Background()
	for _, label := range []string{"09:00", "09:30", "10:00"} {
		_, err := e.Toggle(ctx, d(3), label)
		require.NoError(t, err)
	}
	require.NoError(t, e.CopyDay(d(3)))

	added, err := e.PasteDay(d(4))
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, ExistingBooked, e.SlotState(d(4), "09:00"))
	assert.Equal(t, ExistingOpen, e.SlotState(d(4), "09:30"))
	assert.Equal(t, SelectedPending, e.SlotState(d(4), "10:00"))
}

func TestCopyDayOverwritesClipboard(t *testing.T) {
	e := openEditor(t, &fakeStore{}, nil)
	require.NoError(t, e.CopyDay(d(3)))
	require.NoError(t, e.CopyDay(d(5)))
	day, ok := e.Clipboard()
	require.True(t, ok)
	assert.Equal(t, "2024-06-05", day)

	e.CancelCopy()
	_, ok = e.Clipboard()
	assert.False(t, ok)
}

func TestConfirmWithoutSelectionMakesNoCall(t *testing.T) {
	store := &fakeStore{}
	e := openEditor(t, store, nil)

	_, err := e.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNothingSelected)
	assert.Zero(t, store.createCalls)
	assert.Equal(t, Editing, e.State())
}

func TestConfirmSubmitsHalfHourSlots(t *testing.T) {
	store := &fakeStore{}
	refreshed := 0
	e := NewEditor(EditorConfig{
		Store:    store,
		Location: time.UTC,
		OnSaved:  func(context.Context) { refreshed++ },
	})
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, 7))
	_, err := e.Toggle(ctx, d(4), "10:00")
	require.NoError(t, err)
	_, err = e.Toggle(ctx, d(3), "09:30")
	require.NoError(t, err)
	require.NoError(t, e.CopyDay(d(3)))

	n, err := e.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.created, 1)
	batch := store.created[0]
	assert.True(t, batch[0].Start.Equal(at(3, 9, 30)))
	assert.True(t, batch[0].End.Equal(at(3, 10, 0)))
	assert.True(t, batch[1].Start.Equal(at(4, 10, 0)))
	for _, in := range batch {
		assert.True(t, in.Available)
	}
	assert.Equal(t, Closed, e.State())
	assert.Empty(t, e.Pending())
	_, ok := e.Clipboard()
	assert.False(t, ok)
	assert.Equal(t, 1, refreshed)
}

func TestConfirmFailurePreservesSelection(t *testing.T) {
	store := &fakeStore{createErr: errors.New("backend down")}
	refreshed := false
	e := NewEditor(EditorConfig{Store: store, Location: time.UTC, OnSaved: func(context.Context) { refreshed = true }})
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, 7))
	_, err := e.Toggle(ctx, d(3), "09:00")
	require.NoError(t, err)

	_, err = e.Confirm(ctx)
	require.Error(t, err)
	assert.Equal(t, Editing, e.State())
	assert.Equal(t, []string{"2024-06-03|09:00"}, e.Pending())
	assert.False(t, refreshed)

	store.createErr = nil
	n, err := e.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConfirmRepeatWeeks(t *testing.T) {
	store := &fakeStore{}
	e := openEditor(t, store, nil)
	ctx := context.Background()
	_, err := e.Toggle(ctx, d(3), "09:00")
	require.NoError(t, err)
	require.NoError(t, e.SetRepeatWeeks(3))
	assert.Error(t, e.SetRepeatWeeks(0))

	n, err := e.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	got := store.created[0]
	assert.True(t, got[0].Start.Equal(at(3, 9, 0)))
	assert.True(t, got[1].Start.Equal(at(10, 9, 0)))
	assert.True(t, got[2].Start.Equal(at(17, 9, 0)))
}

func TestConfirmRejectsDoubleSubmit(t *testing.T) {
	store := &fakeStore{entered: make(chan struct{}), release: make(chan struct{})}
	e := openEditor(t, store, nil)
	ctx := context.Background()
	_, err := e.Toggle(ctx, d(3), "09:00")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Confirm(ctx)
		done <- err
	}()
	<-store.entered
	assert.Equal(t, Submitting, e.State())

	_, err = e.Confirm(ctx)
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.createCalls)
}

func TestLateResponseAfterCloseIsIgnored(t *testing.T) {
	store := &fakeStore{entered: make(chan struct{}), release: make(chan struct{})}
	refreshed := false
	e := NewEditor(EditorConfig{Store: store, Location: time.UTC, OnSaved: func(context.Context) { refreshed = true }})
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, 7))
	_, err := e.Toggle(ctx, d(3), "09:00")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Confirm(ctx)
		done <- err
	}()
	<-store.entered
	e.Close()
	close(store.release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, Closed, e.State())
	assert.False(t, refreshed)
}

func TestGridRendersStates(t *testing.T) {
	store := &fakeStore{slots: []contract.Slot{{ID: 1, Start: at(3, 8, 0), End: at(3, 8, 30), Available: false}}}
	e := openEditor(t, store, nil)
	_, err := e.Toggle(context.Background(), d(3), "09:00")
	require.NoError(t, err)

	grid := e.Grid([]time.Time{d(3), d(4)}, false)
	require.Len(t, grid, 2)
	assert.Equal(t, []Cell{{Time: "08:00", State: "booked"}, {Time: "09:00", State: "selected"}}, grid[0].Cells)
	assert.Empty(t, grid[1].Cells)

	full := e.Grid([]time.Time{d(4)}, true)
	assert.Len(t, full[0].Cells, 32)
}
