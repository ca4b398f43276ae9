package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SkyAle-bit/Progetto-FE/internal/availability"
	"github.com/SkyAle-bit/Progetto-FE/internal/booking"
	"github.com/SkyAle-bit/Progetto-FE/internal/calendar"
	"github.com/SkyAle-bit/Progetto-FE/internal/chat"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

type Tab string

const (
	TabOverview  Tab = "overview"
	TabCalendar  Tab = "calendar"
	TabBookings  Tab = "bookings"
	TabChat      Tab = "chat"
	TabDocuments Tab = "documents"
	TabClients   Tab = "clients"
)

func Tabs() []Tab {
	return []Tab{TabOverview, TabCalendar, TabBookings, TabChat, TabDocuments, TabClients}
}

func ParseTab(v string) (Tab, error) {
	for _, t := range Tabs() {
		if string(t) == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q", v)
}

type Modal string

const (
	ModalNone         Modal = "none"
	ModalAvailability Modal = "availability"
	ModalBooking      Modal = "booking"
	ModalCall         Modal = "call"
)

const (
	DefaultCallCheckInterval = 10 * time.Second
	// CallJoinLead is how early before its start a call can be joined.
	CallJoinLead = 10 * time.Minute
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrNotProfessional = errors.New("only trainers and nutritionists manage availability")
	ErrClientsOnly     = errors.New("only clients can book sessions")
)

// Service is everything the dashboard needs from the remote API.
type Service interface {
	Dashboard(ctx context.Context, userID int64) (contract.Dashboard, error)
	availability.SlotStore
	booking.Service
	chat.Service
}

type Config struct {
	Service           Service
	Session           *contract.Session
	Location          *time.Location
	Logger            *zap.Logger
	Now               func() time.Time
	ViewportWidth     int
	ChatInterval      time.Duration
	CallCheckInterval time.Duration
	Confirm           availability.Confirmer
}

// Controller composes the calendar window, availability editor, booking
// selector, chat view and call checker behind one set of transitions.
type Controller struct {
	mu sync.Mutex

	svc      Service
	session  *contract.Session
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
	callTick time.Duration

	window   *calendar.Window
	editor   *availability.Editor
	selector *booking.Selector
	chat     *chat.View
	call     *chat.Poller

	tab          Tab
	modal        Modal
	data         contract.Dashboard
	loaded       bool
	callBooking  *contract.Booking
	callJoinable bool
}

func New(cfg Config) *Controller {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	callTick := cfg.CallCheckInterval
	if callTick <= 0 {
		callTick = DefaultCallCheckInterval
	}
	c := &Controller{
		svc:      cfg.Service,
		session:  cfg.Session,
		loc:      loc,
		log:      logger,
		now:      now,
		callTick: callTick,
		window:   calendar.NewWindow(now().In(loc), cfg.ViewportWidth),
		call:     chat.NewPoller("call", logger),
		tab:      TabOverview,
		modal:    ModalNone,
	}
	c.editor = availability.NewEditor(availability.EditorConfig{
		Store:    cfg.Service,
		Confirm:  cfg.Confirm,
		Location: loc,
		Logger:   logger,
		OnSaved:  c.refresh,
	})
	c.selector = booking.NewSelector(booking.Config{
		Service:  cfg.Service,
		Location: loc,
		Logger:   logger,
		OnBooked: func(ctx context.Context, _ contract.Booking) { c.refresh(ctx) },
	})
	if cfg.Session != nil {
		c.chat = chat.NewView(cfg.Service, cfg.Session.User, cfg.ChatInterval, logger)
	}
	return c
}

func (c *Controller) user() (contract.User, error) {
	if c.session == nil || c.session.Token == "" {
		return contract.User{}, ErrUnauthenticated
	}
	return c.session.User, nil
}

// Load fetches the signed-in user's dashboard.
func (c *Controller) Load(ctx context.Context) (contract.Dashboard, error) {
	u, err := c.user()
	if err != nil {
		return contract.Dashboard{}, err
	}
	d, err := c.svc.Dashboard(ctx, u.ID)
	if err != nil {
		return contract.Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}
	sort.SliceStable(d.UpcomingBookings, func(i, j int) bool {
		return d.UpcomingBookings[i].Start.Before(d.UpcomingBookings[j].Start)
	})
	c.mu.Lock()
	c.data = d
	c.loaded = true
	c.mu.Unlock()
	return d, nil
}

func (c *Controller) refresh(ctx context.Context) {
	if _, err := c.Load(ctx); err != nil {
		c.log.Warn("dashboard refresh failed", zap.Error(err))
	}
}

// Data returns the last loaded dashboard and whether one was loaded.
func (c *Controller) Data() (contract.Dashboard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data, c.loaded
}

func (c *Controller) Tab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

func (c *Controller) Modal() Modal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modal
}

func (c *Controller) Editor() *availability.Editor { return c.editor }
func (c *Controller) Selector() *booking.Selector  { return c.selector }
func (c *Controller) Chat() *chat.View             { return c.chat }

// Resize recomputes the visible window for a new viewport width.
func (c *Controller) Resize(widthPx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.SetViewport(widthPx)
}

func (c *Controller) NextWindow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.Next()
}

func (c *Controller) PrevWindow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.Prev()
}

func (c *Controller) Today() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window.SnapToToday(c.now().In(c.loc))
}

// Day is one visible calendar column with its bookings.
type Day struct {
	Date     string             `json:"date"`
	Weekday  string             `json:"weekday"`
	Today    bool               `json:"today"`
	Bookings []contract.Booking `json:"bookings"`
}

// CalendarDays lists the visible days with the upcoming bookings that fall
// on each of them.
func (c *Controller) CalendarDays() []Day {
	c.mu.Lock()
	defer c.mu.Unlock()
	today := calendar.FormatDate(c.now().In(c.loc))
	days := c.window.Days()
	out := make([]Day, 0, len(days))
	for _, d := range days {
		date := calendar.FormatDate(d)
		day := Day{Date: date, Weekday: d.Weekday().String(), Today: date == today, Bookings: []contract.Booking{}}
		for _, b := range c.data.UpcomingBookings {
			if calendar.FormatDate(b.Start.In(c.loc)) == date {
				day.Bookings = append(day.Bookings, b)
			}
		}
		out = append(out, day)
	}
	return out
}

// VisibleDays returns the raw visible window.
func (c *Controller) VisibleDays() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Days()
}

// SwitchTab changes the active tab. Leaving the chat tab stops its poller;
// entering it loads the inbox and starts polling.
func (c *Controller) SwitchTab(ctx context.Context, tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	c.mu.Lock()
	prev := c.tab
	c.tab = tab
	c.mu.Unlock()
	if prev == tab {
		return nil
	}
	if prev == TabChat && c.chat != nil {
		c.chat.Close()
	}
	if tab == TabChat {
		if c.chat == nil {
			return ErrUnauthenticated
		}
		c.chat.Open(ctx)
	}
	return nil
}

// OpenChat switches to the chat tab with the conversation with otherID open.
func (c *Controller) OpenChat(ctx context.Context, otherID int64) (*chat.Thread, error) {
	if c.chat == nil {
		return nil, ErrUnauthenticated
	}
	if err := c.SwitchTab(ctx, TabChat); err != nil {
		return nil, err
	}
	return c.chat.OpenThread(ctx, otherID)
}

// OpenAvailability opens the editor on the signed-in professional's slots.
func (c *Controller) OpenAvailability(ctx context.Context) error {
	u, err := c.user()
	if err != nil {
		return err
	}
	if !u.Role.IsProfessional() {
		return ErrNotProfessional
	}
	c.CloseModal()
	c.setModal(ModalAvailability)
	if err := c.editor.Open(ctx, u.ID); err != nil {
		c.setModal(ModalNone)
		return err
	}
	return nil
}

// OpenBooking opens the booking selector for professional.
func (c *Controller) OpenBooking(ctx context.Context, professional contract.Professional) error {
	u, err := c.user()
	if err != nil {
		return err
	}
	if u.Role != contract.RoleClient {
		return ErrClientsOnly
	}
	c.CloseModal()
	c.setModal(ModalBooking)
	if err := c.selector.Open(ctx, professional); err != nil {
		c.setModal(ModalNone)
		return err
	}
	return nil
}

// ConfirmBooking books the selected slot for the signed-in client.
func (c *Controller) ConfirmBooking(ctx context.Context) (contract.Booking, string, error) {
	u, err := c.user()
	if err != nil {
		return contract.Booking{}, "", err
	}
	b, msg, err := c.selector.Confirm(ctx, u.ID)
	if err == nil {
		c.setModal(ModalNone)
	}
	return b, msg, err
}

// ConfirmAvailability publishes the editor's pending slots.
func (c *Controller) ConfirmAvailability(ctx context.Context) (int, error) {
	n, err := c.editor.Confirm(ctx)
	if err == nil {
		c.setModal(ModalNone)
	}
	return n, err
}

// CanJoinCall reports whether a session call is open at now: from
// CallJoinLead before the start until the end.
func CanJoinCall(b contract.Booking, now time.Time) bool {
	if b.Start.IsZero() {
		return false
	}
	end := b.End
	if end.IsZero() {
		end = b.Start.Add(calendar.SlotLength)
	}
	return !now.Before(b.Start.Add(-CallJoinLead)) && now.Before(end)
}

// OpenCallModal shows the call for b and re-evaluates whether it can be
// joined on every check interval until the modal closes.
func (c *Controller) OpenCallModal(ctx context.Context, b contract.Booking) bool {
	c.CloseModal()
	c.mu.Lock()
	c.modal = ModalCall
	bk := b
	c.callBooking = &bk
	c.mu.Unlock()
	joinable := c.checkCall()
	c.call.Start(ctx, c.callTick, func(context.Context) error {
		c.checkCall()
		return nil
	})
	return joinable
}

func (c *Controller) checkCall() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callBooking == nil {
		c.callJoinable = false
		return false
	}
	joinable := CanJoinCall(*c.callBooking, c.now())
	if joinable != c.callJoinable {
		c.log.Debug("call availability changed", zap.Int64("booking_id", c.callBooking.ID), zap.Bool("joinable", joinable))
	}
	c.callJoinable = joinable
	return joinable
}

// CallJoinable reports the last evaluation of the open call modal.
func (c *Controller) CallJoinable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callJoinable
}

// CallChecking reports whether the call checker is running.
func (c *Controller) CallChecking() bool { return c.call.Running() }

// CloseModal closes whichever modal is open and releases its resources.
func (c *Controller) CloseModal() {
	c.call.Stop()
	c.mu.Lock()
	modal := c.modal
	c.modal = ModalNone
	c.callBooking = nil
	c.callJoinable = false
	c.mu.Unlock()
	switch modal {
	case ModalAvailability:
		c.editor.Close()
	case ModalBooking:
		c.selector.Close()
	}
}

// Close tears the dashboard down, stopping every timer it started.
func (c *Controller) Close() {
	c.CloseModal()
	if c.chat != nil {
		c.chat.Close()
	}
}

func (c *Controller) setModal(m Modal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modal = m
}
