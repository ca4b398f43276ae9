package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/availability"
	"github.com/SkyAle-bit/Progetto-FE/internal/backend"
	"github.com/SkyAle-bit/Progetto-FE/internal/booking"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/dashboard"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
)

func newController(sess contract.Session, be backend.Backend, ro *globalOptions, confirm availability.Confirmer) *dashboard.Controller {
	return dashboard.New(dashboard.Config{
		Service:       be,
		Session:       &sess,
		Location:      ro.loc,
		Logger:        ro.log,
		Now:           clock,
		ViewportWidth: ro.ViewportWidth,
		ChatInterval:  ro.PollInterval,
		Confirm:       confirm,
	})
}

// failController maps controller and state machine errors to exit codes.
func failController(p output.Printer, err error) error {
	var failure *booking.Failure
	if errors.As(err, &failure) {
		code, exit := contract.ErrBackendUnavailable, exitBackend
		switch {
		case backend.IsUnauthorized(failure.Err):
			code, exit = contract.ErrUnauthenticated, exitUnauthenticated
		case backend.IsConflict(failure.Err):
			code, exit = contract.ErrConflict, exitConflict
		case backend.IsNotFound(failure.Err):
			code, exit = contract.ErrNotFound, exitNotFound
		}
		_ = p.ErrorWithMeta(code, failure.Message, "Run `fitctl book slots` to pick another slot", backendErrorMeta(failure.Err))
		return WrapPrinted(exit, err)
	}
	switch {
	case errors.Is(err, dashboard.ErrUnauthenticated):
		return failWithHint(p, contract.ErrUnauthenticated, err, hintLogin, exitUnauthenticated)
	case errors.Is(err, dashboard.ErrNotProfessional), errors.Is(err, dashboard.ErrClientsOnly):
		return failWithHint(p, contract.ErrPermissionDenied, err, "", exitUsage)
	case errors.Is(err, availability.ErrSlotLocked):
		return failWithHint(p, contract.ErrLocked, err, "Booked slots cannot be changed", exitConflict)
	case errors.Is(err, errConfirmationRequired),
		errors.Is(err, availability.ErrNothingSelected),
		errors.Is(err, booking.ErrNoSlotSelected),
		errors.Is(err, booking.ErrNoProfessional):
		return failUsage(p, err, "")
	case errors.Is(err, booking.ErrUnknownSlot):
		return failWithHint(p, contract.ErrNotFound, err, "Run `fitctl book slots` to list open slots", exitNotFound)
	case errors.Is(err, availability.ErrSubmitInFlight), errors.Is(err, booking.ErrSubmitInFlight):
		return failWithHint(p, contract.ErrConflict, err, "", exitConflict)
	case backend.StatusOf(err) != 0, isContextError(err):
		return failBackend(p, err)
	default:
		return failWithHint(p, contract.ErrGeneric, err, "", exitGeneric)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

type upcomingBooking struct {
	contract.Booking
	Joinable bool `json:"joinable"`
}

type overviewView struct {
	Profile      contract.User           `json:"profile"`
	Subscription *contract.Subscription  `json:"subscription,omitempty"`
	Following    []contract.Professional `json:"following_professionals"`
	Upcoming     []upcomingBooking       `json:"upcoming_bookings"`
}

func (v overviewView) PlainLines() []string {
	out := []string{fmt.Sprintf("%s (%s)", v.Profile.FullName(), v.Profile.Role)}
	if s := v.Subscription; s != nil {
		line := "plan: " + s.PlanName
		if !s.EndDate.IsZero() {
			line += " until " + s.EndDate.Format("2006-01-02")
		}
		out = append(out, line)
	}
	for _, p := range v.Following {
		out = append(out, fmt.Sprintf("following: %s (%s)", p.FullName, p.Role))
	}
	if len(v.Upcoming) == 0 {
		out = append(out, "no upcoming bookings")
	}
	for _, b := range v.Upcoming {
		line := fmt.Sprintf("booking %d: %s %s", b.ID, b.Start.Format("Mon 2006-01-02 15:04"), bookingCounterpart(b.Booking))
		if b.Joinable {
			line += " [call open]"
		}
		out = append(out, line)
	}
	return out
}

func bookingCounterpart(b contract.Booking) string {
	if b.ProfessionalName != "" {
		return b.ProfessionalName
	}
	return b.ClientName
}

func buildOverview(d contract.Dashboard, now time.Time) overviewView {
	v := overviewView{
		Profile:      d.Profile,
		Subscription: d.Subscription,
		Following:    d.FollowingProfessionals,
		Upcoming:     make([]upcomingBooking, 0, len(d.UpcomingBookings)),
	}
	if v.Following == nil {
		v.Following = []contract.Professional{}
	}
	for _, b := range d.UpcomingBookings {
		v.Upcoming = append(v.Upcoming, upcomingBooking{Booking: b, Joinable: dashboard.CanJoinCall(b, now)})
	}
	return v
}

func newDashboardCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show your profile, plan, professionals and upcoming bookings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "dashboard")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			c := newController(sess, be, ro, nil)
			defer c.Close()
			d, err := callBackend(ctx, "backend.dashboard", func() (contract.Dashboard, error) {
				return c.Load(ctx)
			})
			if err != nil {
				return failController(p, err)
			}
			v := buildOverview(d, clock())
			return successWithMeta(ctx, p, ro, v, map[string]any{"upcoming": len(v.Upcoming)}, nil)
		},
	}
	cmd.AddCommand(newCallCmd(opts))
	return cmd
}

type callView struct {
	Booking  contract.Booking `json:"booking"`
	Joinable bool             `json:"joinable"`
	OpensAt  time.Time        `json:"opens_at"`
}

func (v callView) PlainLines() []string {
	if v.Joinable {
		return []string{fmt.Sprintf("call for booking %d is open", v.Booking.ID)}
	}
	return []string{fmt.Sprintf("call for booking %d opens at %s", v.Booking.ID, v.OpensAt.Format("2006-01-02 15:04"))}
}

func newCallCmd(opts *globalOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "call <booking-id>",
		Short: "Check whether the call for a booking can be joined",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(cmd, opts, "dashboard.call")
			if err != nil {
				return err
			}
			id, err := parseID("booking id", args[0])
			if err != nil {
				return failUsage(p, err, "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			c := newController(sess, be, ro, nil)
			defer c.Close()
			d, err := callBackend(ctx, "backend.dashboard", func() (contract.Dashboard, error) {
				return c.Load(ctx)
			})
			if err != nil {
				return failController(p, err)
			}
			var target *contract.Booking
			for i := range d.UpcomingBookings {
				if d.UpcomingBookings[i].ID == id {
					target = &d.UpcomingBookings[i]
				}
			}
			if target == nil {
				return failWithHint(p, contract.ErrNotFound, fmt.Errorf("booking %d is not among your upcoming bookings", id), "Run `fitctl dashboard`", exitNotFound)
			}

			sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			joinable := c.OpenCallModal(sigCtx, *target)
			if wait && !joinable {
				joinable = waitJoinable(sigCtx, c)
			}
			c.CloseModal()
			v := callView{Booking: *target, Joinable: joinable, OpensAt: target.Start.Add(-dashboard.CallJoinLead)}
			return p.Success(v, nil, nil)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the call opens")
	return cmd
}

// waitJoinable watches the controller's call checker until it reports the
// call open or ctx ends.
func waitJoinable(ctx context.Context, c *dashboard.Controller) bool {
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return c.CallJoinable()
		case <-t.C:
			if c.CallJoinable() {
				return true
			}
		}
	}
}

type calendarView struct {
	Days []dashboard.Day `json:"days"`
}

func (v calendarView) PlainLines() []string {
	out := make([]string, 0, len(v.Days)*2)
	for _, d := range v.Days {
		mark := ""
		if d.Today {
			mark = " (today)"
		}
		out = append(out, fmt.Sprintf("%s %s%s", d.Weekday[:3], d.Date, mark))
		for _, b := range d.Bookings {
			out = append(out, fmt.Sprintf("  %s-%s %s", b.Start.Format("15:04"), b.End.Format("15:04"), bookingCounterpart(b)))
		}
	}
	return out
}

func newCalendarCmd(opts *globalOptions) *cobra.Command {
	var offset int
	var next, prev, today bool
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the visible window of days with your bookings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "calendar")
			if err != nil {
				return err
			}
			if conflictCount(next, prev, today, offset != 0) > 1 {
				return failUsage(p, errors.New("--next, --prev, --today and --offset are mutually exclusive"), "")
			}
			if next {
				offset = 1
			}
			if prev {
				offset = -1
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			c := newController(sess, be, ro, nil)
			defer c.Close()
			if _, err := callBackend(ctx, "backend.dashboard", func() (contract.Dashboard, error) {
				return c.Load(ctx)
			}); err != nil {
				return failController(p, err)
			}
			for ; offset > 0; offset-- {
				c.NextWindow()
			}
			for ; offset < 0; offset++ {
				c.PrevWindow()
			}
			if today {
				c.Today()
			}
			days := c.CalendarDays()
			meta := map[string]any{"days": len(days), "width": ro.ViewportWidth}
			return successWithMeta(ctx, p, ro, calendarView{Days: days}, meta, nil)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Move the window by N steps (negative goes back)")
	cmd.Flags().BoolVar(&next, "next", false, "Show the next window")
	cmd.Flags().BoolVar(&prev, "prev", false, "Show the previous window")
	cmd.Flags().BoolVar(&today, "today", false, "Snap the window to today")
	return cmd
}
