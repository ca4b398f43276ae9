package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/booking"
	"github.com/SkyAle-bit/Progetto-FE/internal/calendar"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
	"github.com/SkyAle-bit/Progetto-FE/internal/timeparse"
)

type dayGroupList []booking.DayGroup

func (l dayGroupList) PlainLines() []string {
	if len(l) == 0 {
		return []string{"no open slots"}
	}
	out := make([]string, 0, len(l))
	for _, g := range l {
		times := make([]string, 0, len(g.Slots))
		for _, s := range g.Slots {
			times = append(times, fmt.Sprintf("%s#%d", s.Start.Format("15:04"), s.ID))
		}
		out = append(out, g.Date+"\t"+strings.Join(times, " "))
	}
	return out
}

type bookingView struct {
	Booking contract.Booking `json:"booking"`
	Message string           `json:"message"`
}

func (v bookingView) PlainLines() []string {
	return []string{"booked " + v.Message}
}

func newBookCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "book", Short: "Book a session with one of your professionals"}
	cmd.AddCommand(newBookSlotsCmd(opts), newBookCreateCmd(opts))
	return cmd
}

func newBookSlotsCmd(opts *globalOptions) *cobra.Command {
	var professional, day string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List a professional's open slots grouped by day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "book.slots")
			if err != nil {
				return err
			}
			proID, err := parseID("--professional", professional)
			if err != nil {
				return failUsage(p, err, "Use `fitctl dashboard` to see the professionals you follow")
			}
			var onDay time.Time
			if strings.TrimSpace(day) != "" {
				if onDay, err = timeparse.ParseDay(day, clock(), ro.loc); err != nil {
					return failUsage(p, fmt.Errorf("invalid --day: %w", err), "")
				}
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
			if err := callBackendErr(ctx, "backend.list_slots", func() error {
				return c.OpenBooking(ctx, contract.Professional{ID: proID})
			}); err != nil {
				return failController(p, err)
			}
			days := c.Selector().Days()
			if !onDay.IsZero() {
				if err := c.Selector().SelectDay(onDay); err != nil {
					return failController(p, err)
				}
				date, _ := c.Selector().SelectedDay()
				days = []booking.DayGroup{{Date: date, Slots: c.Selector().SlotsForSelectedDay()}}
			}
			slots := 0
			for _, g := range days {
				slots += len(g.Slots)
			}
			return successWithMeta(ctx, p, ro, dayGroupList(days), map[string]any{"days": len(days), "slots": slots}, nil)
		},
	}
	cmd.Flags().StringVar(&professional, "professional", "", "Professional id")
	cmd.Flags().StringVar(&day, "day", "", "Only this day (YYYY-MM-DD, today, +2d, friday)")
	return cmd
}

func newBookCreateCmd(opts *globalOptions) *cobra.Command {
	var professional, slot, at string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book one open slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "book.create")
			if err != nil {
				return err
			}
			proID, err := parseID("--professional", professional)
			if err != nil {
				return failUsage(p, err, "")
			}
			if (slot == "") == (at == "") {
				return failUsage(p, errors.New("pass exactly one of --slot or --at"), "Run `fitctl book slots --professional ID` to list slots")
			}
			var slotID int64
			var target editOp
			if slot != "" {
				if slotID, err = parseID("--slot", slot); err != nil {
					return failUsage(p, err, "")
				}
			} else {
				if target, err = parseSelect(at); err != nil {
					return failUsage(p, fmt.Errorf("invalid --at %q: want DATE|HH:MM", at), "")
				}
				if target.day, err = timeparse.ParseDay(target.Date, clock(), ro.loc); err != nil {
					return failUsage(p, fmt.Errorf("invalid --at: %w", err), "")
				}
			}

			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := requireClient(p, sess); err != nil {
				return err
			}
			c := newController(sess, be, ro, nil)
			defer c.Close()
			if err := callBackendErr(ctx, "backend.list_slots", func() error {
				return c.OpenBooking(ctx, contract.Professional{ID: proID})
			}); err != nil {
				return failController(p, err)
			}
			sel := c.Selector()
			chosen, ok := findSlot(sel.Days(), slotID, target, ro.loc)
			if !ok {
				return failController(p, booking.ErrUnknownSlot)
			}
			if err := sel.SelectDay(chosen.Start.In(ro.loc)); err != nil {
				return failController(p, err)
			}
			if _, err := sel.ToggleSlot(chosen.ID); err != nil {
				return failController(p, err)
			}
			type confirmed struct {
				b   contract.Booking
				msg string
			}
			res, err := callBackend(ctx, "backend.create_booking", func() (confirmed, error) {
				b, msg, err := c.ConfirmBooking(ctx)
				return confirmed{b, msg}, err
			})
			if err != nil {
				return failController(p, err)
			}
			recordActivity(ctx, st, ro, store.Activity{
				Kind:   store.KindBookingCreated,
				UserID: sess.User.ID,
				Ref:    strconv.FormatInt(res.b.ID, 10),
				Detail: res.msg,
			})
			return successWithMeta(ctx, p, ro, bookingView{Booking: res.b, Message: res.msg}, nil, nil)
		},
	}
	cmd.Flags().StringVar(&professional, "professional", "", "Professional id")
	cmd.Flags().StringVar(&slot, "slot", "", "Slot id")
	cmd.Flags().StringVar(&at, "at", "", "Slot start as DATE|HH:MM")
	return cmd
}

// findSlot looks a slot up by id, or by day and HH:MM when id is zero.
func findSlot(days []booking.DayGroup, id int64, at editOp, loc *time.Location) (contract.Slot, bool) {
	for _, g := range days {
		for _, s := range g.Slots {
			if id != 0 && s.ID == id {
				return s, true
			}
			start := s.Start.In(loc)
			if id == 0 && calendar.FormatDate(start) == calendar.FormatDate(at.day) && calendar.TimeLabel(start) == at.Time {
				return s, true
			}
		}
	}
	return contract.Slot{}, false
}
