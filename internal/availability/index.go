package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/SkyAle-bit/Progetto-FE/internal/calendar"
)

type SlotState int

const (
	Unselected SlotState = iota
	SelectedPending
	ExistingOpen
	ExistingBooked
)

func (s SlotState) String() string {
	switch s {
	case SelectedPending:
		return "selected"
	case ExistingOpen:
		return "open"
	case ExistingBooked:
		return "booked"
	default:
		return "free"
	}
}

// Outcome describes what a toggle did to a slot.
type Outcome string

const (
	OutcomeSelected   Outcome = "selected"
	OutcomeDeselected Outcome = "deselected"
	OutcomeRemoved    Outcome = "removed"
	OutcomeKept       Outcome = "kept"
)

var ErrSlotLocked = errors.New("slot is booked and cannot be changed")

// Remover deletes an existing slot on the remote side.
type Remover interface {
	RemoveSlot(ctx context.Context, slotID int64) error
}

// Confirmer asks the user before a destructive change.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

type entry struct {
	state  SlotState
	slotID int64
}

// Index maps slot keys to their editing state. It is safe for concurrent
// use; the lock is released while a removal round-trip is in flight.
type Index struct {
	mu      sync.Mutex
	entries map[string]entry
	remover Remover
	confirm Confirmer
}

func NewIndex(remover Remover, confirm Confirmer) *Index {
	if confirm == nil {
		confirm = AlwaysConfirm
	}
	return &Index{
		entries: map[string]entry{},
		remover: remover,
		confirm: confirm,
	}
}

// Mark sets or overwrites the state of key. Marking Unselected drops the entry.
func (x *Index) Mark(key string, state SlotState) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if state == Unselected {
		delete(x.entries, key)
		return
	}
	e := x.entries[key]
	e.state = state
	x.entries[key] = e
}

// MarkExisting records a slot already published on the remote side.
func (x *Index) MarkExisting(key string, slotID int64, booked bool) {
	state := ExistingOpen
	if booked {
		state = ExistingBooked
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[key] = entry{state: state, slotID: slotID}
}

func (x *Index) State(key string) SlotState {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.entries[key].state
}

func (x *Index) IsSelected(key string) bool { return x.State(key) == SelectedPending }

func (x *Index) IsExisting(key string) bool {
	s := x.State(key)
	return s == ExistingOpen || s == ExistingBooked
}

func (x *Index) IsLocked(key string) bool { return x.State(key) == ExistingBooked }

// SlotID returns the remote id of an existing slot.
func (x *Index) SlotID(key string) (int64, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.entries[key]
	if !ok || (e.state != ExistingOpen && e.state != ExistingBooked) {
		return 0, false
	}
	return e.slotID, true
}

// Toggle flips a free slot to pending and back. Booked slots are refused
// with ErrSlotLocked. Open slots are removed remotely after confirmation and
// only leave the index once the removal succeeded.
func (x *Index) Toggle(ctx context.Context, key string) (Outcome, error) {
	x.mu.Lock()
	e := x.entries[key]
	switch e.state {
	case ExistingBooked:
		x.mu.Unlock()
		return OutcomeKept, ErrSlotLocked
	case SelectedPending:
		delete(x.entries, key)
		x.mu.Unlock()
		return OutcomeDeselected, nil
	case Unselected:
		x.entries[key] = entry{state: SelectedPending}
		x.mu.Unlock()
		return OutcomeSelected, nil
	}
	x.mu.Unlock()

	date, label, _ := calendar.ParseSlotKey(key)
	ok, err := x.confirm.Confirm(ctx, fmt.Sprintf("Remove open slot on %s at %s?", date, label))
	if err != nil {
		return OutcomeKept, err
	}
	if !ok {
		return OutcomeKept, nil
	}
	if x.remover == nil {
		return OutcomeKept, errors.New("no remover configured for existing slots")
	}
	if err := x.remover.RemoveSlot(ctx, e.slotID); err != nil {
		return OutcomeKept, fmt.Errorf("remove slot %d: %w", e.slotID, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if cur, ok := x.entries[key]; ok && cur.slotID == e.slotID && cur.state == ExistingOpen {
		delete(x.entries, key)
	}
	return OutcomeRemoved, nil
}

// Pending lists every selected-pending key in order.
func (x *Index) Pending() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]string, 0)
	for k, e := range x.entries {
		if e.state == SelectedPending {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// PendingOn lists the pending time labels of one YYYY-MM-DD day.
func (x *Index) PendingOn(date string) []string {
	prefix := date + "|"
	out := make([]string, 0)
	for _, k := range x.Pending() {
		if label, ok := strings.CutPrefix(k, prefix); ok {
			out = append(out, label)
		}
	}
	return out
}

// ClearPending drops every selected-pending entry and keeps existing ones.
func (x *Index) ClearPending() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for k, e := range x.entries {
		if e.state == SelectedPending {
			delete(x.entries, k)
		}
	}
}

func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}
