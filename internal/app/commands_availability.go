package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/availability"
	"github.com/SkyAle-bit/Progetto-FE/internal/calendar"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
	"github.com/SkyAle-bit/Progetto-FE/internal/timeparse"
)

type gridView struct {
	Columns []availability.Column `json:"columns"`
}

func (v gridView) PlainLines() []string {
	out := make([]string, 0, len(v.Columns))
	for _, col := range v.Columns {
		cells := make([]string, 0, len(col.Cells))
		for _, c := range col.Cells {
			cells = append(cells, c.Time+"="+c.State)
		}
		if len(cells) == 0 {
			cells = append(cells, "-")
		}
		out = append(out, col.Date+"\t"+strings.Join(cells, " "))
	}
	return out
}

type editView struct {
	Ops       []editOpResult `json:"ops"`
	Pending   []string       `json:"pending"`
	Published int            `json:"published"`
	DryRun    bool           `json:"dry_run"`
}

func (v editView) PlainLines() []string {
	out := make([]string, 0, len(v.Ops)+1)
	for _, r := range v.Ops {
		status := "ok"
		if !r.OK {
			status = "error: " + r.Error
		}
		detail := strings.TrimSpace(strings.Join([]string{r.Date, r.Time, r.Outcome}, " "))
		if r.Added > 0 {
			detail += fmt.Sprintf(" added=%d", r.Added)
		}
		out = append(out, fmt.Sprintf("%s %s: %s", r.Op, detail, status))
	}
	if v.DryRun {
		out = append(out, fmt.Sprintf("dry run: %d pending", len(v.Pending)))
	} else {
		out = append(out, fmt.Sprintf("published %d slots", v.Published))
	}
	return out
}

func newAvailabilityCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "availability", Short: "Publish and manage your bookable slots"}
	cmd.AddCommand(newAvailabilityShowCmd(opts), newAvailabilityEditCmd(opts), newAvailabilityDeleteCmd(opts))
	return cmd
}

func newAvailabilityShowCmd(opts *globalOptions) *cobra.Command {
	var from string
	var all bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show your slots over the visible window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "availability.show")
			if err != nil {
				return err
			}
			var anchor time.Time
			if strings.TrimSpace(from) != "" {
				if anchor, err = timeparse.ParseDay(from, clock(), ro.loc); err != nil {
					return failUsage(p, fmt.Errorf("invalid --from: %w", err), "")
				}
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := requireProfessional(p, sess); err != nil {
				return err
			}
			c := newController(sess, be, ro, nil)
			defer c.Close()
			if err := callBackendErr(ctx, "backend.list_slots", func() error { return c.OpenAvailability(ctx) }); err != nil {
				return failController(p, err)
			}
			days := c.VisibleDays()
			if !anchor.IsZero() {
				days = calendar.NewWindow(anchor, ro.ViewportWidth).Days()
			}
			cols := c.Editor().Grid(days, all)
			return successWithMeta(ctx, p, ro, gridView{Columns: cols}, map[string]any{"days": len(cols)}, nil)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Show the window containing this day (YYYY-MM-DD, today, +7d, monday)")
	cmd.Flags().BoolVar(&all, "all", false, "Include free cells")
	return cmd
}

func newAvailabilityEditCmd(opts *globalOptions) *cobra.Command {
	var selects, pastes []string
	var copyDay, filePath string
	var repeat int
	var assumeYes, dryRun, strict bool
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Select, copy and paste slots, then publish them",
		Long: "Applies editor operations in order: every --select, then --copy, then each --paste, then --repeat.\n" +
			"With --file, operations come from JSONL lines such as {\"op\":\"select\",\"date\":\"2024-06-03\",\"time\":\"09:00\"}.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "availability.edit")
			if err != nil {
				return err
			}
			var ops []editOp
			if strings.TrimSpace(filePath) != "" {
				if len(selects) > 0 || len(pastes) > 0 || copyDay != "" || repeat != 0 {
					return failUsage(p, errors.New("--file cannot be combined with --select, --copy, --paste or --repeat"), "")
				}
				if ops, err = readEditScript(cmd.InOrStdin(), filePath); err != nil {
					return failUsage(p, err, "Check file path or stdin")
				}
			} else {
				if ops, err = flagEditOps(selects, copyDay, pastes, repeat); err != nil {
					return failUsage(p, err, "")
				}
			}
			if len(ops) == 0 {
				return failUsage(p, errors.New("no operations given"), "Pass --select DATE|HH:MM or --file ops.jsonl")
			}
			now := clock()
			for i := range ops {
				if err := ops[i].resolve(now, ro.loc); err != nil {
					if ops[i].line > 0 {
						err = fmt.Errorf("line %d: %w", ops[i].line, err)
					}
					return failUsage(p, err, "")
				}
			}

			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := requireProfessional(p, sess); err != nil {
				return err
			}
			c := newController(sess, be, ro, newConfirmer(ro, assumeYes, cmd.InOrStdin(), cmd.ErrOrStderr()))
			defer c.Close()
			if err := callBackendErr(ctx, "backend.list_slots", func() error { return c.OpenAvailability(ctx) }); err != nil {
				return failController(p, err)
			}

			view := editView{Ops: make([]editOpResult, 0, len(ops)), DryRun: dryRun}
			failed, removed := 0, 0
			for _, op := range ops {
				res := applyEditOp(ctx, c.Editor(), op)
				view.Ops = append(view.Ops, res)
				if !res.OK {
					failed++
					if strict {
						break
					}
					continue
				}
				if res.Outcome == string(availability.OutcomeRemoved) {
					removed++
					recordActivity(ctx, st, ro, store.Activity{Kind: store.KindSlotDeleted, UserID: sess.User.ID, Ref: op.Date + " " + op.Time})
				}
			}
			view.Pending = c.Editor().Pending()
			if view.Pending == nil {
				view.Pending = []string{}
			}
			meta := map[string]any{"ops": len(view.Ops), "errors": failed, "removed": removed}

			if dryRun || (strict && failed > 0) {
				return finishEdit(ctx, p, ro, view, meta, failed)
			}
			if len(view.Pending) == 0 {
				if removed == 0 && failed == 0 {
					return failUsage(p, availability.ErrNothingSelected, "")
				}
				return finishEdit(ctx, p, ro, view, meta, failed)
			}
			n, err := callBackend(ctx, "backend.create_slots", func() (int, error) {
				return c.ConfirmAvailability(ctx)
			})
			if err != nil {
				return failController(p, err)
			}
			view.Published = n
			recordActivity(ctx, st, ro, store.Activity{
				Kind:   store.KindSlotsCreated,
				UserID: sess.User.ID,
				Ref:    strconv.Itoa(n),
				Detail: strings.Join(view.Pending, ","),
			})
			return finishEdit(ctx, p, ro, view, meta, failed)
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&selects, "select", nil, "Toggle a slot, DATE|HH:MM (repeatable)")
	f.StringVar(&copyDay, "copy", "", "Copy the pending slots of a day")
	f.StringArrayVar(&pastes, "paste", nil, "Paste the copied day onto DATE (repeatable)")
	f.IntVar(&repeat, "repeat", 0, fmt.Sprintf("Repeat pending slots weekly for N weeks (1-%d)", calendar.MaxRepeatWeeks))
	f.StringVar(&filePath, "file", "", "JSONL operations file or - for stdin")
	f.BoolVarP(&assumeYes, "yes", "y", false, "Approve removing open slots without asking")
	f.BoolVarP(&dryRun, "dry-run", "n", false, "Apply operations locally without publishing")
	f.BoolVar(&strict, "strict", false, "Stop at the first failing operation and publish nothing")
	return cmd
}

func flagEditOps(selects []string, copyDay string, pastes []string, repeat int) ([]editOp, error) {
	ops := make([]editOp, 0, len(selects)+len(pastes)+2)
	for _, s := range selects {
		op, err := parseSelect(s)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if strings.TrimSpace(copyDay) != "" {
		ops = append(ops, editOp{Op: opCopy, Date: copyDay})
	}
	if len(pastes) > 0 && strings.TrimSpace(copyDay) == "" {
		return nil, errors.New("--paste requires --copy")
	}
	for _, d := range pastes {
		// Pasting empties the clipboard, so each target copies again.
		if len(ops) > 0 && ops[len(ops)-1].Op == opPaste {
			ops = append(ops, editOp{Op: opCopy, Date: copyDay})
		}
		ops = append(ops, editOp{Op: opPaste, Date: d})
	}
	if repeat != 0 {
		ops = append(ops, editOp{Op: opRepeat, Weeks: repeat})
	}
	return ops, nil
}

func finishEdit(ctx context.Context, p output.Printer, ro *globalOptions, view editView, meta map[string]any, failed int) error {
	_ = successWithMeta(ctx, p, ro, view, meta, nil)
	if failed > 0 {
		return WrapPrinted(exitGeneric, fmt.Errorf("availability edit completed with %d error(s)", failed))
	}
	return nil
}

func newAvailabilityDeleteCmd(opts *globalOptions) *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "delete <slot-id | DATE|HH:MM>",
		Short: "Remove one open slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, be, ro, err := buildContext(cmd, opts, "availability.delete")
			if err != nil {
				return err
			}
			var target editOp
			slotID, idErr := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if idErr != nil {
				if target, err = parseSelect(args[0]); err != nil {
					return failUsage(p, err, "Pass a slot id or DATE|HH:MM")
				}
				if err := target.resolve(clock(), ro.loc); err != nil {
					return failUsage(p, err, "")
				}
			} else if slotID <= 0 {
				return failUsage(p, fmt.Errorf("invalid slot id %d", slotID), "")
			}

			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := requireProfessional(p, sess); err != nil {
				return err
			}
			if slotID > 0 {
				slots, err := callBackend(ctx, "backend.list_slots", func() ([]contract.Slot, error) {
					return be.ListSlots(ctx, sess.User.ID)
				})
				if err != nil {
					return failBackend(p, err)
				}
				found := false
				for _, s := range slots {
					if s.ID == slotID {
						start := s.Start.In(ro.loc)
						target = editOp{Op: opSelect, Date: calendar.FormatDate(start), Time: calendar.TimeLabel(start), day: calendar.Midnight(start)}
						found = true
						break
					}
				}
				if !found {
					return failWithHint(p, contract.ErrNotFound, fmt.Errorf("slot %d not found", slotID), "Run `fitctl availability show`", exitNotFound)
				}
			}

			c := newController(sess, be, ro, newConfirmer(ro, assumeYes, cmd.InOrStdin(), cmd.ErrOrStderr()))
			defer c.Close()
			if err := callBackendErr(ctx, "backend.list_slots", func() error { return c.OpenAvailability(ctx) }); err != nil {
				return failController(p, err)
			}
			if c.Editor().SlotState(target.day, target.Time) != availability.ExistingOpen {
				if c.Editor().SlotState(target.day, target.Time) == availability.ExistingBooked {
					return failController(p, availability.ErrSlotLocked)
				}
				return failWithHint(p, contract.ErrNotFound, fmt.Errorf("no open slot on %s at %s", target.Date, target.Time), "", exitNotFound)
			}
			outcome, err := callBackend(ctx, "backend.delete_slot", func() (availability.Outcome, error) {
				return c.Editor().Toggle(ctx, target.day, target.Time)
			})
			if err != nil {
				return failController(p, err)
			}
			if outcome == availability.OutcomeRemoved {
				recordActivity(ctx, st, ro, store.Activity{Kind: store.KindSlotDeleted, UserID: sess.User.ID, Ref: target.Date + " " + target.Time})
			}
			return p.Success(editOpResult{Op: "delete", Date: target.Date, Time: target.Time, OK: true, Outcome: string(outcome)}, nil, nil)
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Remove without asking")
	return cmd
}
