package calendar

import "time"

// Viewport breakpoints in pixels.
const (
	NarrowMaxWidth = 640
	MediumMaxWidth = 1024
)

// Offset bounds for the narrow and medium layouts, in days from the week start.
const (
	MinOffset = -28
	MaxOffset = 56
)

// ClassifyViewport maps a viewport width to the number of visible days.
func ClassifyViewport(widthPx int) int {
	switch {
	case widthPx <= NarrowMaxWidth:
		return 1
	case widthPx <= MediumMaxWidth:
		return 3
	default:
		return 7
	}
}

// InitWeek returns the Monday starting the ISO week that contains today.
// Sunday belongs to the week of the preceding Monday.
func InitWeek(today time.Time) time.Time {
	day := int(today.Weekday())
	diff := 1 - day
	if day == 0 {
		diff = -6
	}
	return Midnight(today).AddDate(0, 0, diff)
}

// ComputeWindow lists count consecutive days starting at weekStart+offset.
func ComputeWindow(weekStart time.Time, offset, count int) []time.Time {
	if count <= 0 {
		return nil
	}
	first := Midnight(weekStart).AddDate(0, 0, offset)
	out := make([]time.Time, count)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}

// Window is the navigable run of days shown by the calendar.
type Window struct {
	weekStart time.Time
	offset    int
	count     int
}

// NewWindow anchors a window at the week containing today, sized for widthPx.
// Narrow layouts start on the block that contains today.
func NewWindow(today time.Time, widthPx int) *Window {
	w := &Window{
		weekStart: InitWeek(today),
		count:     ClassifyViewport(widthPx),
	}
	if w.count < 7 {
		w.SnapToToday(today)
	}
	return w
}

func (w *Window) WeekStart() time.Time { return w.weekStart }
func (w *Window) Offset() int          { return w.offset }
func (w *Window) DayCount() int        { return w.count }

// Days returns the visible days in order.
func (w *Window) Days() []time.Time {
	return ComputeWindow(w.weekStart, w.offset, w.count)
}

// First and Last bound the visible range.
func (w *Window) First() time.Time {
	return Midnight(w.weekStart).AddDate(0, 0, w.offset)
}

func (w *Window) Last() time.Time {
	return w.First().AddDate(0, 0, w.count-1)
}

// Contains reports whether day is currently visible.
func (w *Window) Contains(day time.Time) bool {
	d := DaysBetween(w.First(), day)
	return d >= 0 && d < w.count
}

// Prev steps back a full week in the 7-day layout, otherwise by one block.
func (w *Window) Prev() {
	if w.count == 7 {
		w.weekStart = w.weekStart.AddDate(0, 0, -7)
		w.offset = 0
		return
	}
	w.offset = clampOffset(w.offset - w.count)
}

// Next steps forward a full week in the 7-day layout, otherwise by one block.
func (w *Window) Next() {
	if w.count == 7 {
		w.weekStart = w.weekStart.AddDate(0, 0, 7)
		w.offset = 0
		return
	}
	w.offset = clampOffset(w.offset + w.count)
}

// SnapToToday moves the window so today is visible. In narrow layouts the
// offset becomes the start of the block containing today.
func (w *Window) SnapToToday(today time.Time) {
	if w.count == 7 {
		w.weekStart = InitWeek(today)
		w.offset = 0
		return
	}
	dist := DaysBetween(w.weekStart, today)
	w.offset = clampOffset(floorDiv(dist, w.count) * w.count)
}

// SetViewport recomputes the day count for a new viewport width.
func (w *Window) SetViewport(widthPx int) {
	w.count = ClassifyViewport(widthPx)
	if w.count == 7 {
		w.offset = 0
		return
	}
	w.offset = clampOffset(w.offset)
}

func clampOffset(v int) int {
	if v < MinOffset {
		return MinOffset
	}
	if v > MaxOffset {
		return MaxOffset
	}
	return v
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
