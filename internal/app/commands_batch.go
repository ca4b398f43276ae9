package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/SkyAle-bit/Progetto-FE/internal/availability"
	"github.com/SkyAle-bit/Progetto-FE/internal/calendar"
	"github.com/SkyAle-bit/Progetto-FE/internal/timeparse"
)

const (
	opSelect     = "select"
	opCopy       = "copy"
	opPaste      = "paste"
	opCancelCopy = "cancel_copy"
	opRepeat     = "repeat"
)

// editOp is one availability editor operation, from flags or a JSONL line.
type editOp struct {
	Op    string `json:"op"`
	Date  string `json:"date,omitempty"`
	Time  string `json:"time,omitempty"`
	Weeks int    `json:"weeks,omitempty"`

	line int
	day  time.Time
}

type editOpResult struct {
	Line    int    `json:"line,omitempty"`
	Op      string `json:"op"`
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome,omitempty"`
	Added   int    `json:"added,omitempty"`
	Error   string `json:"error,omitempty"`
}

// resolve validates the operation and fixes its day in loc. It never talks
// to the network.
func (o *editOp) resolve(now time.Time, loc *time.Location) error {
	o.Op = strings.ToLower(strings.TrimSpace(o.Op))
	needsDate := o.Op == opSelect || o.Op == opCopy || o.Op == opPaste
	switch o.Op {
	case opSelect, opCopy, opPaste, opCancelCopy:
	case opRepeat:
		if o.Weeks < 1 || o.Weeks > calendar.MaxRepeatWeeks {
			return fmt.Errorf("repeat weeks must be between 1 and %d", calendar.MaxRepeatWeeks)
		}
	default:
		return fmt.Errorf("unsupported op: %q", o.Op)
	}
	if needsDate {
		if strings.TrimSpace(o.Date) == "" {
			return fmt.Errorf("%s requires date", o.Op)
		}
		day, err := timeparse.ParseDay(o.Date, now, loc)
		if err != nil {
			return err
		}
		o.day = day
		o.Date = calendar.FormatDate(day)
	}
	if o.Op == opSelect {
		label := strings.TrimSpace(o.Time)
		if !slices.Contains(calendar.BuildTimeSlots(calendar.GridStartHour, calendar.GridEndHour), label) {
			return fmt.Errorf("invalid time %q: want HH:00 or HH:30 between %02d:00 and %02d:30", o.Time, calendar.GridStartHour, calendar.GridEndHour-1)
		}
		o.Time = label
	}
	return nil
}

// parseSelect reads DATE|HH:MM, DATE HH:MM or DATETHH:MM.
func parseSelect(v string) (editOp, error) {
	s := strings.TrimSpace(v)
	for _, sep := range []string{"|", " ", "T"} {
		if date, label, ok := strings.Cut(s, sep); ok && strings.Contains(label, ":") {
			return editOp{Op: opSelect, Date: strings.TrimSpace(date), Time: strings.TrimSpace(label)}, nil
		}
	}
	return editOp{}, fmt.Errorf("invalid --select %q: want DATE|HH:MM", v)
}

func readEditScript(in io.Reader, path string) ([]editOp, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	ops := make([]editOp, 0, len(lines))
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		var op editOp
		if err := json.Unmarshal([]byte(s), &op); err != nil {
			return nil, fmt.Errorf("line %d: invalid json", i+1)
		}
		op.line = i + 1
		ops = append(ops, op)
	}
	return ops, nil
}

// applyEditOp runs one resolved operation against an editor that is open
// for editing.
func applyEditOp(ctx context.Context, e *availability.Editor, op editOp) editOpResult {
	res := editOpResult{Line: op.line, Op: op.Op, Date: op.Date, Time: op.Time}
	var err error
	switch op.Op {
	case opSelect:
		var outcome availability.Outcome
		outcome, err = e.Toggle(ctx, op.day, op.Time)
		res.Outcome = string(outcome)
	case opCopy:
		err = e.CopyDay(op.day)
	case opPaste:
		res.Added, err = e.PasteDay(op.day)
	case opCancelCopy:
		e.CancelCopy()
	case opRepeat:
		err = e.SetRepeatWeeks(op.Weeks)
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}
