package booking

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
	LoadingSlots
	DaySelected
	SlotSelected
	Submitting
)

func (s State) String() string {
	switch s {
	case LoadingSlots:
		return "loading-slots"
	case DaySelected:
		return "day-selected"
	case SlotSelected:
		return "slot-selected"
	case Submitting:
		return "submitting"
	default:
		return "closed"
	}
}

// GenericFailure is shown when the backend gives no message of its own.
const GenericFailure = "booking failed, please retry"

var (
	ErrNotOpen        = errors.New("booking selector is not open")
	ErrNoProfessional = errors.New("select a professional first")
	ErrNoSlotSelected = errors.New("select a slot before confirming")
	ErrUnknownSlot    = errors.New("slot is not offered on the selected day")
	ErrSubmitInFlight = errors.New("booking submission already in progress")
	ErrStale          = errors.New("booking selector closed before the response arrived")
)

// Service is the remote side of the booking flow.
type Service interface {
	ListSlots(ctx context.Context, professionalID int64) ([]contract.Slot, error)
	CreateBooking(ctx context.Context, userID, slotID int64) (contract.Booking, error)
}

// Failure carries the user facing message of a rejected booking.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }
func (f *Failure) Unwrap() error { return f.Err }

// messager is implemented by backend errors that carry a server message.
type messager interface {
	UserMessage() string
}

// DayGroup is the set of open slots on one calendar day.
type DayGroup struct {
	Date  string          `json:"date"`
	Slots []contract.Slot `json:"slots"`
}

type Config struct {
	Service  Service
	Location *time.Location
	Logger   *zap.Logger
	// OnBooked runs after a successful booking, outside the selector lock.
	OnBooked func(ctx context.Context, b contract.Booking)
}

// Selector tracks the day and slot a client picks for one professional.
type Selector struct {
	mu sync.Mutex

	svc      Service
	loc      *time.Location
	log      *zap.Logger
	onBooked func(ctx context.Context, b contract.Booking)

	state        State
	professional contract.Professional
	days         []DayGroup
	selectedDay  string
	selectedSlot int64
	hasSlot      bool
	gen          uint64
}

func NewSelector(cfg Config) *Selector {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{svc: cfg.Service, loc: loc, log: logger, onBooked: cfg.OnBooked}
}

func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Selector) Professional() contract.Professional {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.professional
}

// Open loads the professional's open slots and selects the earliest day.
func (s *Selector) Open(ctx context.Context, professional contract.Professional) error {
	if professional.ID == 0 {
		return ErrNoProfessional
	}
	s.mu.Lock()
	if s.state == Submitting {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	s.gen++
	gen := s.gen
	s.state = LoadingSlots
	s.professional = professional
	s.days = nil
	s.selectedDay = ""
	s.clearSlot()
	s.mu.Unlock()

	slots, err := s.svc.ListSlots(ctx, professional.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStale
	}
	if err != nil {
		s.state = Closed
		return fmt.Errorf("load slots: %w", err)
	}
	s.days = GroupByDay(slots, s.loc)
	if len(s.days) > 0 {
		s.selectedDay = s.days[0].Date
	}
	s.state = DaySelected
	s.log.Debug("booking selector open",
		zap.Int64("professional_id", professional.ID),
		zap.Int("days", len(s.days)))
	return nil
}

// Close discards the selection. A response still in flight is ignored.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = Closed
	s.days = nil
	s.selectedDay = ""
	s.clearSlot()
}

// GroupByDay keeps available slots and partitions them by calendar day in
// loc, days ascending and slots ascending by start.
func GroupByDay(slots []contract.Slot, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	byDay := map[string][]contract.Slot{}
	for _, sl := range slots {
		if !sl.Available {
			continue
		}
		key := calendar.FormatDate(sl.Start.In(loc))
		byDay[key] = append(byDay[key], sl)
	}
	out := make([]DayGroup, 0, len(byDay))
	for date, group := range byDay {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Start.Before(group[j].Start) })
		out = append(out, DayGroup{Date: date, Slots: group})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Days returns the day groups.
func (s *Selector) Days() []DayGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DayGroup, len(s.days))
	copy(out, s.days)
	return out
}

// SelectedDay returns the selected YYYY-MM-DD day, if any.
func (s *Selector) SelectedDay() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedDay, s.selectedDay != ""
}

// SelectDay switches to day and clears the selected slot. A day without
// open slots projects to an empty list.
func (s *Selector) SelectDay(day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectable(); err != nil {
		return err
	}
	s.selectedDay = calendar.FormatDate(day)
	s.clearSlot()
	s.state = DaySelected
	return nil
}

// SlotsForSelectedDay lists the selected day's slots by start time.
func (s *Selector) SlotsForSelectedDay() []contract.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.group(s.selectedDay)
	if g == nil {
		return []contract.Slot{}
	}
	out := make([]contract.Slot, len(g.Slots))
	copy(out, g.Slots)
	return out
}

// ToggleSlot selects slotID on the selected day, or clears it when it is
// already selected. It reports whether a slot is selected afterwards.
func (s *Selector) ToggleSlot(slotID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectable(); err != nil {
		return false, err
	}
	if s.hasSlot && s.selectedSlot == slotID {
		s.clearSlot()
		s.state = DaySelected
		return false, nil
	}
	g := s.group(s.selectedDay)
	if g == nil || !containsSlot(g.Slots, slotID) {
		return false, ErrUnknownSlot
	}
	s.selectedSlot, s.hasSlot = slotID, true
	s.state = SlotSelected
	return true, nil
}

// SelectedSlot returns the selected slot, if any.
func (s *Selector) SelectedSlot() (contract.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotLocked()
}

// Confirm books the selected slot for userID and returns a confirmation
// such as "Monday 3 June 2024 at 09:00". Failures come back as *Failure and
// leave the slot selected.
func (s *Selector) Confirm(ctx context.Context, userID int64) (contract.Booking, string, error) {
	s.mu.Lock()
	if s.state == Submitting {
		s.mu.Unlock()
		return contract.Booking{}, "", ErrSubmitInFlight
	}
	if s.state == Closed || s.state == LoadingSlots {
		s.mu.Unlock()
		return contract.Booking{}, "", ErrNotOpen
	}
	if s.professional.ID == 0 {
		s.mu.Unlock()
		return contract.Booking{}, "", ErrNoProfessional
	}
	slot, ok := s.slotLocked()
	if !ok {
		s.mu.Unlock()
		return contract.Booking{}, "", ErrNoSlotSelected
	}
	s.state = Submitting
	gen := s.gen
	s.mu.Unlock()

	b, err := s.svc.CreateBooking(ctx, userID, slot.ID)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return contract.Booking{}, "", ErrStale
	}
	if err != nil {
		s.state = SlotSelected
		s.mu.Unlock()
		s.log.Warn("booking failed", zap.Int64("slot_id", slot.ID), zap.Error(err))
		return contract.Booking{}, "", &Failure{Message: failureMessage(err), Err: err}
	}
	s.gen++
	s.state = Closed
	s.days = nil
	s.selectedDay = ""
	s.clearSlot()
	hook := s.onBooked
	loc := s.loc
	s.mu.Unlock()

	if b.Start.IsZero() {
		b.Start, b.End = slot.Start, slot.End
	}
	if b.SlotID == 0 {
		b.SlotID = slot.ID
	}
	s.log.Info("booking created", zap.Int64("slot_id", slot.ID), zap.Int64("booking_id", b.ID))
	if hook != nil {
		hook(ctx, b)
	}
	return b, ConfirmationText(slot.Start.In(loc)), nil
}

// ConfirmationText renders a booked slot start for people.
func ConfirmationText(start time.Time) string {
	return start.Format("Monday 2 January 2006 at 15:04")
}

func failureMessage(err error) string {
	var m messager
	if errors.As(err, &m) && m.UserMessage() != "" {
		return m.UserMessage()
	}
	return GenericFailure
}

func (s *Selector) selectable() error {
	switch s.state {
	case DaySelected, SlotSelected:
		return nil
	case Submitting:
		return ErrSubmitInFlight
	default:
		return ErrNotOpen
	}
}

func (s *Selector) group(date string) *DayGroup {
	for i := range s.days {
		if s.days[i].Date == date {
			return &s.days[i]
		}
	}
	return nil
}

func (s *Selector) clearSlot() {
	s.selectedSlot, s.hasSlot = 0, false
}

func (s *Selector) slotLocked() (contract.Slot, bool) {
	if !s.hasSlot {
		return contract.Slot{}, false
	}
	g := s.group(s.selectedDay)
	if g == nil {
		return contract.Slot{}, false
	}
	for _, sl := range g.Slots {
		if sl.ID == s.selectedSlot {
			return sl, true
		}
	}
	return contract.Slot{}, false
}

func containsSlot(slots []contract.Slot, id int64) bool {
	for _, sl := range slots {
		if sl.ID == id {
			return true
		}
	}
	return false
}
