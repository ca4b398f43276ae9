package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SkyAle-bit/Progetto-FE/internal/calendar"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

type State int

const (
	Closed State = iota
	LoadingExisting
	Editing
	Submitting
)

func (s State) String() string {
	switch s {
	case LoadingExisting:
		return "loading-existing"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	default:
		return "closed"
	}
}

var (
	ErrNotEditing      = errors.New("availability editor is not open for editing")
	ErrNothingSelected = errors.New("select at least one slot before confirming")
	ErrSubmitInFlight  = errors.New("availability submission already in progress")
	ErrStale           = errors.New("availability editor closed before the response arrived")
)

// SlotStore is the remote side of a professional's availability.
type SlotStore interface {
	ListSlots(ctx context.Context, professionalID int64) ([]contract.Slot, error)
	CreateSlots(ctx context.Context, professionalID int64, slots []contract.SlotInput) error
	DeleteSlot(ctx context.Context, professionalID, slotID int64) error
}

type EditorConfig struct {
	Store    SlotStore
	Confirm  Confirmer
	Location *time.Location
	Logger   *zap.Logger
	// OnSaved runs after a successful submission, outside the editor lock.
	OnSaved func(ctx context.Context)
}

// Editor drives the availability editing flow for one professional at a time.
type Editor struct {
	mu sync.Mutex

	store   SlotStore
	confirm Confirmer
	loc     *time.Location
	log     *zap.Logger
	onSaved func(ctx context.Context)

	state          State
	professionalID int64
	index          *Index
	clipboard      string
	repeatWeeks    int
	// gen changes whenever the editor is opened or closed; responses that
	// started under an older generation are dropped.
	gen uint64
}

func NewEditor(cfg EditorConfig) *Editor {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		store:       cfg.Store,
		confirm:     cfg.Confirm,
		loc:         loc,
		log:         logger,
		onSaved:     cfg.OnSaved,
		repeatWeeks: 1,
	}
}

type slotRemover struct {
	store          SlotStore
	professionalID int64
}

func (r slotRemover) RemoveSlot(ctx context.Context, slotID int64) error {
	return r.store.DeleteSlot(ctx, r.professionalID, slotID)
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Editor) ProfessionalID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.professionalID
}

// Open loads the professional's published slots and enters editing.
func (e *Editor) Open(ctx context.Context, professionalID int64) error {
	e.mu.Lock()
	if e.state == Submitting {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	e.gen++
	gen := e.gen
	e.state = LoadingExisting
	e.professionalID = professionalID
	e.index = NewIndex(slotRemover{store: e.store, professionalID: professionalID}, e.confirm)
	e.clipboard = ""
	e.repeatWeeks = 1
	e.mu.Unlock()

	slots, err := e.store.ListSlots(ctx, professionalID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return ErrStale
	}
	if err != nil {
		e.state = Closed
		return fmt.Errorf("load existing slots: %w", err)
	}
	for _, s := range slots {
		start := s.Start.In(e.loc)
		e.index.MarkExisting(calendar.SlotKey(start, calendar.TimeLabel(start)), s.ID, !s.Available)
	}
	e.state = Editing
	e.log.Debug("availability editor open",
		zap.Int64("professional_id", professionalID),
		zap.Int("existing", len(slots)))
	return nil
}

// Close discards pending selections and the clipboard.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.state = Closed
	e.index = nil
	e.clipboard = ""
}

func (e *Editor) editingIndex() (*Index, error) {
	if e.state != Editing {
		return nil, ErrNotEditing
	}
	return e.index, nil
}

// Toggle flips one slot on day at the HH:MM label.
func (e *Editor) Toggle(ctx context.Context, day time.Time, label string) (Outcome, error) {
	if _, err := calendar.SlotStart(day, label); err != nil {
		return OutcomeKept, err
	}
	e.mu.Lock()
	idx, err := e.editingIndex()
	e.mu.Unlock()
	if err != nil {
		return OutcomeKept, err
	}
	return idx.Toggle(ctx, calendar.SlotKey(day, label))
}

// SlotState reports the state of one slot while editing.
func (e *Editor) SlotState(day time.Time, label string) SlotState {
	e.mu.Lock()
	idx := e.index
	e.mu.Unlock()
	if idx == nil {
		return Unselected
	}
	return idx.State(calendar.SlotKey(day, label))
}

// CopyDay puts day on the clipboard, replacing any previous day.
func (e *Editor) CopyDay(day time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.editingIndex(); err != nil {
		return err
	}
	e.clipboard = calendar.FormatDate(day)
	return nil
}

// CancelCopy empties the clipboard.
func (e *Editor) CancelCopy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clipboard = ""
}

// Clipboard returns the copied day, if any.
func (e *Editor) Clipboard() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clipboard, e.clipboard != ""
}

// PasteDay adds the copied day's pending times to target as pending and
// empties the clipboard. Existing slots on target stay as they are. It
// returns how many slots were added.
func (e *Editor) PasteDay(target time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.editingIndex()
	if err != nil {
		return 0, err
	}
	if e.clipboard == "" {
		return 0, nil
	}
	added := 0
	for _, label := range idx.PendingOn(e.clipboard) {
		key := calendar.SlotKey(target, label)
		if idx.State(key) != Unselected {
			continue
		}
		idx.Mark(key, SelectedPending)
		added++
	}
	e.clipboard = ""
	return added, nil
}

// SetRepeatWeeks replicates every pending slot on the same weekday for n
// consecutive weeks when confirming.
func (e *Editor) SetRepeatWeeks(n int) error {
	if n < 1 || n > calendar.MaxRepeatWeeks {
		return fmt.Errorf("repeat weeks must be between 1 and %d", calendar.MaxRepeatWeeks)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.repeatWeeks = n
	return nil
}

// Pending lists the selected slot keys in order.
func (e *Editor) Pending() []string {
	e.mu.Lock()
	idx := e.index
	e.mu.Unlock()
	if idx == nil {
		return nil
	}
	return idx.Pending()
}

// Confirm publishes every pending slot as one batch. With nothing selected it
// fails with ErrNothingSelected without touching the network. On failure the
// editor goes back to editing with the selection intact.
func (e *Editor) Confirm(ctx context.Context) (int, error) {
	e.mu.Lock()
	if e.state == Submitting {
		e.mu.Unlock()
		return 0, ErrSubmitInFlight
	}
	idx, err := e.editingIndex()
	if err != nil {
		e.mu.Unlock()
		return 0, err
	}
	keys := idx.Pending()
	if len(keys) == 0 {
		e.mu.Unlock()
		return 0, ErrNothingSelected
	}
	inputs, err := buildInputs(keys, e.loc, e.repeatWeeks)
	if err != nil {
		e.mu.Unlock()
		return 0, err
	}
	e.state = Submitting
	gen := e.gen
	professionalID := e.professionalID
	e.mu.Unlock()

	err = e.store.CreateSlots(ctx, professionalID, inputs)

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return 0, ErrStale
	}
	if err != nil {
		e.state = Editing
		e.mu.Unlock()
		e.log.Warn("availability submit failed", zap.Int64("professional_id", professionalID), zap.Error(err))
		return 0, fmt.Errorf("submit availability: %w", err)
	}
	idx.ClearPending()
	e.clipboard = ""
	e.state = Closed
	e.gen++
	hook := e.onSaved
	e.mu.Unlock()

	e.log.Info("availability published", zap.Int64("professional_id", professionalID), zap.Int("slots", len(inputs)))
	if hook != nil {
		hook(ctx)
	}
	return len(inputs), nil
}

func buildInputs(keys []string, loc *time.Location, repeatWeeks int) ([]contract.SlotInput, error) {
	seen := map[int64]bool{}
	out := make([]contract.SlotInput, 0, len(keys)*repeatWeeks)
	for _, key := range keys {
		date, label, err := calendar.ParseSlotKey(key)
		if err != nil {
			return nil, err
		}
		day, err := calendar.ParseDate(date, loc)
		if err != nil {
			return nil, err
		}
		start, err := calendar.SlotStart(day, label)
		if err != nil {
			return nil, err
		}
		occurrences, err := calendar.ExpandWeekly(start, repeatWeeks)
		if err != nil {
			return nil, err
		}
		for _, st := range occurrences {
			if seen[st.Unix()] {
				continue
			}
			seen[st.Unix()] = true
			out = append(out, contract.SlotInput{Start: st, End: st.Add(calendar.SlotLength), Available: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Cell is one slot of the rendered editing grid.
type Cell struct {
	Time  string `json:"time"`
	State string `json:"state"`
}

// Column is one day of the rendered editing grid.
type Column struct {
	Date  string `json:"date"`
	Cells []Cell `json:"cells"`
}

// Grid renders the slot states of days between the grid hours. Free cells
// are omitted unless includeFree is set.
func (e *Editor) Grid(days []time.Time, includeFree bool) []Column {
	labels := calendar.BuildTimeSlots(calendar.GridStartHour, calendar.GridEndHour)
	out := make([]Column, 0, len(days))
	for _, d := range days {
		col := Column{Date: calendar.FormatDate(d), Cells: []Cell{}}
		for _, label := range labels {
			st := e.SlotState(d, label)
			if st == Unselected && !includeFree {
				continue
			}
			col.Cells = append(col.Cells, Cell{Time: label, State: st.String()})
		}
		out = append(out, col)
	}
	return out
}
